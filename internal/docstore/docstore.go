// Package docstore provides a small document store: JSON objects grouped by
// collection and addressed by a store-assigned id.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no document has the requested id.
var ErrNotFound = errors.New("document not found")

// Document is one stored object.
type Document struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the document data into v.
func (d Document) Decode(v interface{}) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decoding document %s: %w", d.ID, err)
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}

// encodeObject marshals v and checks that it is a JSON object.
func encodeObject(v interface{}) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("document must be a JSON object")
	}
	return obj, nil
}

// merge applies the top-level fields onto base. Fields not named are kept.
func merge(base json.RawMessage, fields map[string]interface{}) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(base, &obj); err != nil {
		return nil, fmt.Errorf("decoding stored document: %w", err)
	}
	if obj == nil {
		obj = make(map[string]json.RawMessage, len(fields))
	}

	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding field %s: %w", k, err)
		}
		obj[k] = raw
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return out, nil
}
