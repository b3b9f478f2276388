package web

import (
	"github.com/evcraddock/canvass/internal/address"
	"github.com/evcraddock/canvass/internal/geocode"
	"github.com/evcraddock/canvass/internal/history"
	"github.com/evcraddock/canvass/internal/outcome"
)

type entryView struct {
	Timestamp int64         `json:"timestamp"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Results   []outcome.Tag `json:"results"`
	VisitedBy string        `json:"visitedBy"`
	Comment   string        `json:"comment"`
	Style     outcome.Style `json:"style"`
}

func newEntryView(e history.Entry) entryView {
	results := e.Results
	if results == nil {
		results = []outcome.Tag{}
	}
	var ts int64
	if !e.Timestamp.IsZero() {
		ts = e.Timestamp.UnixMilli()
	}
	return entryView{
		Timestamp: ts,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Results:   results,
		VisitedBy: e.VisitedBy,
		Comment:   e.Comment,
		Style:     outcome.StyleOf(e.Color()),
	}
}

// addressView is the API shape of a record.
type addressView struct {
	ID string `json:"id"`
	address.Fields
	Address     string         `json:"address"`
	Coordinates *geocode.Point `json:"coordinates"`
	UpdatedAt   int64          `json:"updatedAt"`
	Results     []outcome.Tag  `json:"results"`
	FirstName   string         `json:"firstName"`
	LastName    string         `json:"lastName"`
	VisitedBy   string         `json:"visitedBy"`
	Comment     string         `json:"comment"`
	History     []entryView    `json:"history"`
	Color       outcome.Color  `json:"color"`
	Style       outcome.Style  `json:"style"`
	Visible     bool           `json:"visible"`
}

func (s *Server) newAddressView(rec address.Record) addressView {
	results := rec.Current.Results
	if results == nil {
		results = []outcome.Tag{}
	}
	var updated int64
	if !rec.UpdatedAt.IsZero() {
		updated = rec.UpdatedAt.UnixMilli()
	}

	entries := make([]entryView, 0, len(rec.History))
	for _, e := range rec.History {
		entries = append(entries, newEntryView(e))
	}

	return addressView{
		ID:          rec.ID,
		Fields:      rec.Fields,
		Address:     rec.Format(),
		Coordinates: rec.Coordinates,
		UpdatedAt:   updated,
		Results:     results,
		FirstName:   rec.Current.FirstName,
		LastName:    rec.Current.LastName,
		VisitedBy:   rec.Current.VisitedBy,
		Comment:     rec.Current.Comment,
		History:     entries,
		Color:       rec.Color,
		Style:       outcome.StyleOf(rec.Color),
		Visible:     s.filter.IsVisible(rec.Current.Results),
	}
}

type filterView struct {
	Enabled   []outcome.Color `json:"enabled"`
	Filtering bool            `json:"filtering"`
}

func (s *Server) newFilterView() filterView {
	enabled := s.filter.Enabled()
	return filterView{Enabled: enabled, Filtering: len(enabled) < len(outcome.Colors)}
}
