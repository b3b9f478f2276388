package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process store with the same semantics as SQLite.
type Memory struct {
	mu          sync.Mutex
	collections map[string]*memCollection
}

type memCollection struct {
	order []string
	docs  map[string]json.RawMessage
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

func (m *Memory) collection(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string]json.RawMessage)}
		m.collections[name] = c
	}
	return c
}

// Create stores data under a new id.
func (m *Memory) Create(_ context.Context, collection string, data interface{}) (string, error) {
	obj, err := encodeObject(data)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := newID()
	c := m.collection(collection)
	c.docs[id] = raw
	c.order = append(c.order, id)
	return id, nil
}

// Get returns one document. Tests use it to inspect what was written.
func (m *Memory) Get(_ context.Context, collection, id string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.collection(collection).docs[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return &Document{ID: id, Data: append(json.RawMessage(nil), raw...)}, nil
}

// Update merges fields into an existing document.
func (m *Memory) Update(_ context.Context, collection, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	raw, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}

	merged, err := merge(raw, fields)
	if err != nil {
		return err
	}
	c.docs[id] = merged
	return nil
}

// Delete removes a document.
func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	if _, ok := c.docs[id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns every document in insertion order.
func (m *Memory) List(_ context.Context, collection string) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	docs := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, Document{ID: id, Data: append(json.RawMessage(nil), c.docs[id]...)})
	}
	return docs, nil
}

// Put stores data under a caller-chosen id, replacing any existing document.
// Tests use it to seed records with known ids.
func (m *Memory) Put(_ context.Context, collection, id string, data interface{}) error {
	obj, err := encodeObject(data)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = raw
	return nil
}
