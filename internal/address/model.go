// Package address provides the address registry: the keyed set of visited
// addresses, each with its own visit ledger.
package address

import (
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/canvass/internal/geocode"
	"github.com/evcraddock/canvass/internal/history"
	"github.com/evcraddock/canvass/internal/outcome"
)

// Fields is the postal address of a record.
type Fields struct {
	HouseNumber string `json:"houseNumber"`
	StreetName  string `json:"streetName"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip"`
}

// Validate checks that every address part is present.
func (f Fields) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"houseNumber", f.HouseNumber},
		{"streetName", f.StreetName},
		{"city", f.City},
		{"state", f.State},
		{"zip", f.Zip},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &history.ValidationError{Field: r.name, Reason: "is required"}
		}
	}
	return nil
}

// Format returns the one-line address used for geocoding and display.
func (f Fields) Format() string {
	return fmt.Sprintf("%s %s, %s, %s %s", f.HouseNumber, f.StreetName, f.City, f.State, f.Zip)
}

func (f Fields) trimmed() Fields {
	return Fields{
		HouseNumber: strings.TrimSpace(f.HouseNumber),
		StreetName:  strings.TrimSpace(f.StreetName),
		City:        strings.TrimSpace(f.City),
		State:       strings.TrimSpace(f.State),
		Zip:         strings.TrimSpace(f.Zip),
	}
}

// Record is a point-in-time copy of one registry entry. Changing it has no
// effect on the registry.
type Record struct {
	ID string
	Fields
	Coordinates *geocode.Point
	UpdatedAt   time.Time
	History     []history.Entry
	Current     history.Current
	Color       outcome.Color
}

// LastVisit returns the newest history timestamp.
func (r Record) LastVisit() (time.Time, bool) {
	if len(r.History) == 0 {
		return time.Time{}, false
	}
	return r.History[len(r.History)-1].Timestamp, true
}

// record is the registry's owned state for one address.
type record struct {
	id        string
	fields    Fields
	coords    *geocode.Point
	updatedAt time.Time
	ledger    *history.Ledger
}

func (r *record) snapshot() Record {
	s := Record{
		ID:        r.id,
		Fields:    r.fields,
		UpdatedAt: r.updatedAt,
		History:   r.ledger.All(),
		Color:     r.ledger.Color(),
	}
	if r.coords != nil {
		p := *r.coords
		s.Coordinates = &p
	}
	s.Current, _ = r.ledger.Current()
	return s
}

// document is the stored shape of a record. Field names are shared with
// records written by earlier versions of the tool.
type document struct {
	HouseNumber string          `json:"houseNumber"`
	StreetName  string          `json:"streetName"`
	City        string          `json:"city"`
	State       string          `json:"state"`
	Zip         string          `json:"zip"`
	Coordinates *geocode.Point  `json:"coordinates"`
	UpdatedAt   int64           `json:"updatedAt"`
	Results     []outcome.Tag   `json:"results"`
	Comments    string          `json:"comments,omitempty"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	VisitedBy   string          `json:"visitedBy"`
	History     []history.Entry `json:"history"`
}

func newDocument(f Fields, coords *geocode.Point, updatedAt time.Time, entries []history.Entry, cur history.Current) document {
	results := cur.Results
	if results == nil {
		results = []outcome.Tag{}
	}
	return document{
		HouseNumber: f.HouseNumber,
		StreetName:  f.StreetName,
		City:        f.City,
		State:       f.State,
		Zip:         f.Zip,
		Coordinates: coords,
		UpdatedAt:   updatedAt.UnixMilli(),
		Results:     results,
		FirstName:   cur.FirstName,
		LastName:    cur.LastName,
		VisitedBy:   cur.VisitedBy,
		History:     entries,
	}
}

func (d document) fields() Fields {
	return Fields{
		HouseNumber: d.HouseNumber,
		StreetName:  d.StreetName,
		City:        d.City,
		State:       d.State,
		Zip:         d.Zip,
	}
}

func (d document) updatedAt() time.Time {
	if d.UpdatedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(d.UpdatedAt)
}

func (d document) legacy() history.Legacy {
	return history.Legacy{
		Results:   d.Results,
		Comments:  d.Comments,
		UpdatedAt: d.updatedAt(),
		FirstName: d.FirstName,
		LastName:  d.LastName,
		VisitedBy: d.VisitedBy,
	}
}

// currentFields is the partial update written after every history change.
func currentFields(l *history.Ledger, updatedAt time.Time) map[string]interface{} {
	cur, _ := l.Current()
	results := cur.Results
	if results == nil {
		results = []outcome.Tag{}
	}
	return map[string]interface{}{
		"results":   results,
		"firstName": cur.FirstName,
		"lastName":  cur.LastName,
		"visitedBy": cur.VisitedBy,
		"history":   l.All(),
		"updatedAt": updatedAt.UnixMilli(),
	}
}
