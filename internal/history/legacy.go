package history

import (
	"strings"
	"time"

	"github.com/evcraddock/canvass/internal/outcome"
)

// Legacy holds the top-level visit fields written before history was tracked.
type Legacy struct {
	Results   []outcome.Tag
	Comments  string
	UpdatedAt time.Time
	FirstName string
	LastName  string
	VisitedBy string
}

// IsEmpty reports whether there is nothing to migrate.
func (l Legacy) IsEmpty() bool {
	return len(l.Results) == 0 && strings.TrimSpace(l.Comments) == ""
}

// Materialize returns the ledger for a stored record.
//
// When the record already has history, it is used as is. Otherwise a single
// entry is synthesized from the legacy fields, timestamped with UpdatedAt or
// now. An explicit empty history counts as none, since saved records always
// carry at least one entry. The second return value reports whether an entry
// was synthesized, in which case the caller should persist the new history.
func Materialize(entries []Entry, legacy Legacy, now time.Time) (*Ledger, bool) {
	if len(entries) > 0 || legacy.IsEmpty() {
		return NewLedger(entries...), false
	}

	ts := legacy.UpdatedAt
	if ts.IsZero() {
		ts = now
	}

	results := legacy.Results
	if results == nil {
		results = []outcome.Tag{}
	}

	// Synthesized entries bypass Validate: legacy data may lack a visitor.
	return NewLedger(Entry{
		Timestamp: ts,
		FirstName: legacy.FirstName,
		LastName:  legacy.LastName,
		Results:   results,
		VisitedBy: legacy.VisitedBy,
		Comment:   legacy.Comments,
	}), true
}
