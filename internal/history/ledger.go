package history

import (
	"time"

	"github.com/evcraddock/canvass/internal/outcome"
)

// Current is the projection of the most recent entry.
type Current struct {
	Results   []outcome.Tag `json:"results"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	VisitedBy string        `json:"visitedBy"`
	Comment   string        `json:"comment"`
}

// Ledger is the ordered, append-only visit history of one address.
// A Ledger is not safe for concurrent use; the address registry serializes access.
type Ledger struct {
	entries []Entry
}

// NewLedger builds a ledger from entries already in chronological order.
func NewLedger(entries ...Entry) *Ledger {
	l := &Ledger{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		l.entries = append(l.entries, e.clone())
	}
	return l
}

// Append validates e and adds it to the end of the ledger.
// The returned projection reflects e.
func (l *Ledger) Append(e Entry) (Current, error) {
	if err := e.Validate(); err != nil {
		return Current{}, err
	}
	l.entries = append(l.entries, e.clone())
	c, _ := l.Current()
	return c, nil
}

// Current returns the last entry's fields, or false if the ledger is empty.
func (l *Ledger) Current() (Current, bool) {
	if len(l.entries) == 0 {
		return Current{}, false
	}
	last := l.entries[len(l.entries)-1]
	return Current{
		Results:   append([]outcome.Tag(nil), last.Results...),
		FirstName: last.FirstName,
		LastName:  last.LastName,
		VisitedBy: last.VisitedBy,
		Comment:   last.Comment,
	}, true
}

// All returns a copy of every entry in append order.
func (l *Ledger) All() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.clone()
	}
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Color classifies the current results. An empty ledger is blue.
func (l *Ledger) Color() outcome.Color {
	c, _ := l.Current()
	return outcome.Classify(c.Results)
}

// LastVisit returns the timestamp of the newest entry.
func (l *Ledger) LastVisit() (time.Time, bool) {
	if len(l.entries) == 0 {
		return time.Time{}, false
	}
	return l.entries[len(l.entries)-1].Timestamp, true
}

// Clone returns an independent copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	return NewLedger(l.entries...)
}
