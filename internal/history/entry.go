// Package history provides the per-address visit ledger.
package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/canvass/internal/outcome"
)

// ValidationError reports a missing or malformed required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Entry is one recorded visit. Entries are never modified once appended.
type Entry struct {
	Timestamp time.Time     `json:"-"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Results   []outcome.Tag `json:"results"`
	VisitedBy string        `json:"visitedBy"`
	Comment   string        `json:"comment"`
}

// Validate checks that the entry has at least one result and a visitor.
func (e Entry) Validate() error {
	if len(e.Results) == 0 {
		return &ValidationError{Field: "results", Reason: "at least one result is required"}
	}
	for _, r := range e.Results {
		if strings.TrimSpace(string(r)) == "" {
			return &ValidationError{Field: "results", Reason: "results must not be blank"}
		}
	}
	if strings.TrimSpace(e.VisitedBy) == "" {
		return &ValidationError{Field: "visitedBy", Reason: "visitor name is required"}
	}
	return nil
}

// Color returns the classification of this entry's results.
func (e Entry) Color() outcome.Color {
	return outcome.Classify(e.Results)
}

// Name joins the first and last name of the person spoken with.
func (e Entry) Name() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

func (e Entry) clone() Entry {
	if e.Results != nil {
		e.Results = append(make([]outcome.Tag, 0, len(e.Results)), e.Results...)
	}
	return e
}

type entryJSON struct {
	Timestamp int64 `json:"timestamp"`
	entryAlias
}

type entryAlias Entry

// MarshalJSON encodes the timestamp as epoch milliseconds.
func (e Entry) MarshalJSON() ([]byte, error) {
	results := e.Results
	if results == nil {
		results = []outcome.Tag{}
	}
	alias := entryAlias(e)
	alias.Results = results

	var millis int64
	if !e.Timestamp.IsZero() {
		millis = e.Timestamp.UnixMilli()
	}
	return json.Marshal(entryJSON{Timestamp: millis, entryAlias: alias})
}

// UnmarshalJSON decodes an epoch millisecond timestamp.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entry(raw.entryAlias)
	if raw.Timestamp != 0 {
		e.Timestamp = time.UnixMilli(raw.Timestamp)
	}
	return nil
}
