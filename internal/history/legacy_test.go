package history

import (
	"reflect"
	"testing"
	"time"

	"github.com/evcraddock/canvass/internal/outcome"
)

func TestMaterializeExistingHistory(t *testing.T) {
	existing := []Entry{entry("Ann", outcome.Busy), entry("Bob", outcome.NoAnswer)}
	legacy := Legacy{Results: []outcome.Tag{outcome.Believer}, Comments: "old"}

	l, synthesized := Materialize(existing, legacy, time.Now())
	if synthesized {
		t.Error("should not synthesize when history exists")
	}
	if l.Len() != 2 {
		t.Errorf("len = %d, want 2", l.Len())
	}
}

func TestMaterializeLegacy(t *testing.T) {
	updated := time.UnixMilli(1600000000000)
	now := time.UnixMilli(1700000000000)

	tests := []struct {
		name        string
		legacy      Legacy
		wantEntries int
		wantTime    time.Time
		wantResults []outcome.Tag
	}{
		{
			name:        "results and comments",
			legacy:      Legacy{Results: []outcome.Tag{outcome.SharedGospel}, Comments: "prayed", UpdatedAt: updated},
			wantEntries: 1,
			wantTime:    updated,
			wantResults: []outcome.Tag{outcome.SharedGospel},
		},
		{
			name:        "comments only uses now",
			legacy:      Legacy{Comments: "come back"},
			wantEntries: 1,
			wantTime:    now,
			wantResults: []outcome.Tag{},
		},
		{
			name:        "nothing to migrate",
			legacy:      Legacy{UpdatedAt: updated},
			wantEntries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, synthesized := Materialize(nil, tt.legacy, now)
			if synthesized != (tt.wantEntries == 1) {
				t.Errorf("synthesized = %v", synthesized)
			}
			if l.Len() != tt.wantEntries {
				t.Fatalf("len = %d, want %d", l.Len(), tt.wantEntries)
			}
			if tt.wantEntries == 0 {
				return
			}
			e := l.All()[0]
			if !e.Timestamp.Equal(tt.wantTime) {
				t.Errorf("timestamp = %v, want %v", e.Timestamp, tt.wantTime)
			}
			if !reflect.DeepEqual(e.Results, tt.wantResults) {
				t.Errorf("results = %#v, want %#v", e.Results, tt.wantResults)
			}
			if e.Comment != tt.legacy.Comments {
				t.Errorf("comment = %q, want %q", e.Comment, tt.legacy.Comments)
			}
		})
	}
}

// A saved record never has an empty history, so an empty list next to
// legacy fields is a record that was never migrated.
func TestMaterializeEmptyHistoryMigrates(t *testing.T) {
	legacy := Legacy{Results: []outcome.Tag{outcome.Busy}, Comments: "old"}

	l, synthesized := Materialize([]Entry{}, legacy, time.Now())
	if !synthesized {
		t.Fatal("expected an entry synthesized from legacy fields")
	}
	if l.Len() != 1 || l.All()[0].Comment != "old" {
		t.Errorf("ledger = %+v", l.All())
	}
}

func TestMaterializeIdempotent(t *testing.T) {
	legacy := Legacy{Results: []outcome.Tag{outcome.NoAnswer}, Comments: "dog", UpdatedAt: time.UnixMilli(1600000000000)}

	first, synthesized := Materialize(nil, legacy, time.Now())
	if !synthesized || first.Len() != 1 {
		t.Fatalf("first pass: synthesized=%v len=%d", synthesized, first.Len())
	}

	// The second pass sees the persisted history alongside the same legacy fields.
	second, synthesized := Materialize(first.All(), legacy, time.Now())
	if synthesized {
		t.Error("second pass synthesized again")
	}
	if second.Len() != 1 {
		t.Errorf("len = %d after second pass, want 1", second.Len())
	}
}
