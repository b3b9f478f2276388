package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/evcraddock/canvass/internal/db"
)

type store interface {
	Create(ctx context.Context, collection string, data interface{}) (string, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]Document, error)
	Put(ctx context.Context, collection, id string, data interface{}) error
}

func stores(t *testing.T) map[string]store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return map[string]store{
		"sqlite": NewSQLite(d),
		"memory": NewMemory(),
	}
}

type doc struct {
	Street string   `json:"street"`
	City   string   `json:"city"`
	Tags   []string `json:"tags,omitempty"`
}

func TestCreateAndGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := s.Create(ctx, "addresses", doc{Street: "Bruce Ave", City: "Louisville"})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if id == "" {
				t.Fatal("expected id")
			}

			got, err := s.Get(ctx, "addresses", id)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			var d doc
			if err := got.Decode(&d); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if d.Street != "Bruce Ave" || d.City != "Louisville" {
				t.Errorf("got %+v", d)
			}
		})
	}
}

func TestCreateRejectsNonObject(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Create(context.Background(), "addresses", []int{1, 2}); err == nil {
				t.Error("expected error for array document")
			}
		})
	}
}

func TestUniqueIDs(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seen := make(map[string]bool)
			for i := 0; i < 20; i++ {
				id, err := s.Create(context.Background(), "addresses", doc{})
				if err != nil {
					t.Fatalf("create: %v", err)
				}
				if seen[id] {
					t.Fatalf("duplicate id %s", id)
				}
				seen[id] = true
			}
		})
	}
}

func TestUpdateMergesFields(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := s.Create(ctx, "addresses", doc{Street: "Bruce Ave", City: "Louisville", Tags: []string{"a"}})
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			if err := s.Update(ctx, "addresses", id, map[string]interface{}{
				"city": "Okolona",
				"tags": []string{"a", "b"},
			}); err != nil {
				t.Fatalf("update: %v", err)
			}

			got, err := s.Get(ctx, "addresses", id)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			var d doc
			if err := got.Decode(&d); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if d.Street != "Bruce Ave" {
				t.Errorf("street clobbered: %q", d.Street)
			}
			if d.City != "Okolona" {
				t.Errorf("city = %q, want Okolona", d.City)
			}
			if len(d.Tags) != 2 {
				t.Errorf("tags = %v", d.Tags)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.Get(ctx, "addresses", "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("get: err = %v, want ErrNotFound", err)
			}
			if err := s.Update(ctx, "addresses", "missing", map[string]interface{}{"a": 1}); !errors.Is(err, ErrNotFound) {
				t.Errorf("update: err = %v, want ErrNotFound", err)
			}
			if err := s.Delete(ctx, "addresses", "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("delete: err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDeleteAndList(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var ids []string
			for _, street := range []string{"A St", "B St", "C St"} {
				id, err := s.Create(ctx, "addresses", doc{Street: street})
				if err != nil {
					t.Fatalf("create: %v", err)
				}
				ids = append(ids, id)
			}
			if _, err := s.Create(ctx, "other", doc{Street: "Elsewhere"}); err != nil {
				t.Fatalf("create other: %v", err)
			}

			if err := s.Delete(ctx, "addresses", ids[1]); err != nil {
				t.Fatalf("delete: %v", err)
			}

			docs, err := s.List(ctx, "addresses")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(docs) != 2 {
				t.Fatalf("got %d docs, want 2", len(docs))
			}
			if docs[0].ID != ids[0] || docs[1].ID != ids[2] {
				t.Errorf("order = [%s %s], want [%s %s]", docs[0].ID, docs[1].ID, ids[0], ids[2])
			}
		})
	}
}

func TestPut(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Put(ctx, "addresses", "legacy-1", doc{Street: "Old Rd"}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if err := s.Put(ctx, "addresses", "legacy-1", doc{Street: "New Rd"}); err != nil {
				t.Fatalf("put again: %v", err)
			}

			docs, err := s.List(ctx, "addresses")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(docs) != 1 {
				t.Fatalf("got %d docs, want 1", len(docs))
			}
			var d doc
			if err := docs[0].Decode(&d); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if d.Street != "New Rd" {
				t.Errorf("street = %q, want New Rd", d.Street)
			}
		})
	}
}
