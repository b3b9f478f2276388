package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/evcraddock/canvass/internal/address"
	"github.com/evcraddock/canvass/internal/auth"
	"github.com/evcraddock/canvass/internal/geocode"
	"github.com/evcraddock/canvass/internal/history"
	"github.com/evcraddock/canvass/internal/metrics"
	"github.com/evcraddock/canvass/internal/outcome"
)

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// registryError maps registry errors onto status codes.
func (s *Server) registryError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *history.ValidationError
		ge *address.GeocodeError
		se *address.StoreError
	)
	switch {
	case errors.As(err, &ve):
		apiError(w, ve.Error(), http.StatusBadRequest)
	case errors.Is(err, address.ErrNotFound):
		apiError(w, "address not found", http.StatusNotFound)
	case errors.As(err, &ge):
		apiError(w, fmt.Sprintf("could not find coordinates for %s", ge.Address), http.StatusUnprocessableEntity)
	case errors.As(err, &se):
		s.logger.ErrorContext(r.Context(), "store failure", "op", se.Op, "error", se.Err)
		apiError(w, "saving failed, please try again", http.StatusInternalServerError)
	default:
		s.logger.ErrorContext(r.Context(), "registry failure", "error", err)
		apiError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) registerAPI(r chi.Router) {
	r.Route("/addresses", func(r chi.Router) {
		r.Get("/", s.apiListAddresses)
		r.Post("/", s.apiAddAddress)
		r.Get("/{id}", s.apiGetAddress)
		r.Delete("/{id}", s.apiDeleteAddress)
		r.Post("/{id}/history", s.apiAddHistory)
		r.Post("/{id}/coordinates", s.apiBackfill)
	})

	r.Get("/geocode/reverse", s.apiReverseGeocode)

	r.Get("/filter", s.apiGetFilter)
	r.Put("/filter", s.apiSetFilter)
	r.Post("/filter/reset", s.apiResetFilter)
	r.Post("/filter/{color}/toggle", s.apiToggleFilter)

	r.Get("/colors", s.apiColors)
	r.Get("/outcomes", s.apiOutcomes)
}

// apiListAddresses returns every address, or only those passing the filter
// with ?visible=true.
func (s *Server) apiListAddresses(w http.ResponseWriter, r *http.Request) {
	onlyVisible := false
	if v := r.URL.Query().Get("visible"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			apiError(w, "visible must be true or false", http.StatusBadRequest)
			return
		}
		onlyVisible = b
	}

	records := s.registry.List()
	views := make([]addressView, 0, len(records))
	for _, rec := range records {
		v := s.newAddressView(rec)
		if onlyVisible && !v.Visible {
			continue
		}
		views = append(views, v)
	}

	apiJSON(w, views, http.StatusOK)
}

type visitRequest struct {
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Results   []outcome.Tag `json:"results"`
	VisitedBy string        `json:"visitedBy"`
	Comment   string        `json:"comment"`
}

// entry builds a history entry. A missing visitor falls back to the
// volunteer owning the request's API key.
func (v visitRequest) entry(r *http.Request) history.Entry {
	visitedBy := strings.TrimSpace(v.VisitedBy)
	if visitedBy == "" {
		if k, ok := auth.KeyFromContext(r.Context()); ok {
			visitedBy = k.Volunteer
		}
	}

	results := make([]outcome.Tag, 0, len(v.Results))
	for _, t := range v.Results {
		results = append(results, outcome.Tag(strings.TrimSpace(string(t))))
	}

	return history.Entry{
		FirstName: strings.TrimSpace(v.FirstName),
		LastName:  strings.TrimSpace(v.LastName),
		Results:   results,
		VisitedBy: visitedBy,
		Comment:   strings.TrimSpace(v.Comment),
	}
}

// apiAddAddress creates an address with its first visit.
func (s *Server) apiAddAddress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		address.Fields
		Coordinates *geocode.Point `json:"coordinates"`
		visitRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	rec, err := s.registry.Add(r.Context(), req.Fields, req.Coordinates, req.visitRequest.entry(r))
	if err != nil {
		s.registryError(w, r, err)
		return
	}

	apiJSON(w, s.newAddressView(rec), http.StatusCreated)
}

func (s *Server) apiGetAddress(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.FindByID(chi.URLParam(r, "id"))
	if err != nil {
		s.registryError(w, r, err)
		return
	}
	apiJSON(w, s.newAddressView(rec), http.StatusOK)
}

func (s *Server) apiDeleteAddress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Remove(r.Context(), id); err != nil {
		s.registryError(w, r, err)
		return
	}
	apiJSON(w, map[string]interface{}{"id": id, "removed": true}, http.StatusOK)
}

// apiAddHistory records another visit at an existing address.
func (s *Server) apiAddHistory(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	rec, err := s.registry.AddHistoryEntry(r.Context(), chi.URLParam(r, "id"), req.entry(r))
	if err != nil {
		s.registryError(w, r, err)
		return
	}

	apiJSON(w, s.newAddressView(rec), http.StatusCreated)
}

// apiBackfill geocodes an address that has no coordinates yet.
func (s *Server) apiBackfill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.registry.BackfillCoordinates(r.Context(), id); err != nil {
		s.registryError(w, r, err)
		return
	}

	rec, err := s.registry.FindByID(id)
	if err != nil {
		s.registryError(w, r, err)
		return
	}
	apiJSON(w, s.newAddressView(rec), http.StatusOK)
}

// apiReverseGeocode resolves a map click to address fields for the add form.
func (s *Server) apiReverseGeocode(w http.ResponseWriter, r *http.Request) {
	if s.reverse == nil {
		apiError(w, "reverse geocoding not configured", http.StatusServiceUnavailable)
		return
	}

	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		apiError(w, "lat must be a number between -90 and 90", http.StatusBadRequest)
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		apiError(w, "lon must be a number between -180 and 180", http.StatusBadRequest)
		return
	}

	a, err := s.reverse.Reverse(r.Context(), lat, lon)
	switch {
	case err == nil:
		s.metrics.ObserveGeocode("reverse", metrics.ResultOK)
	case errors.Is(err, geocode.ErrNotFound):
		s.metrics.ObserveGeocode("reverse", metrics.ResultNotFound)
		apiError(w, "no address found at that location", http.StatusNotFound)
		return
	default:
		s.metrics.ObserveGeocode("reverse", metrics.ResultError)
		s.logger.WarnContext(r.Context(), "reverse geocode failed", "lat", lat, "lon", lon, "error", err)
		apiError(w, "geocoding service unavailable", http.StatusBadGateway)
		return
	}

	apiJSON(w, map[string]interface{}{
		"address":     a,
		"coordinates": geocode.Point{Lat: lat, Lon: lon},
	}, http.StatusOK)
}

func (s *Server) apiGetFilter(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, s.newFilterView(), http.StatusOK)
}

// apiSetFilter replaces the enabled colors. Unknown colors are an error.
func (s *Server) apiSetFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled []string `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	colors := make([]outcome.Color, 0, len(req.Enabled))
	for _, name := range req.Enabled {
		c, ok := outcome.ParseColor(name)
		if !ok {
			apiError(w, fmt.Sprintf("unknown color %q", name), http.StatusBadRequest)
			return
		}
		colors = append(colors, c)
	}

	s.filter.Set(colors)
	apiJSON(w, s.newFilterView(), http.StatusOK)
}

func (s *Server) apiResetFilter(w http.ResponseWriter, r *http.Request) {
	s.filter.Reset()
	apiJSON(w, s.newFilterView(), http.StatusOK)
}

func (s *Server) apiToggleFilter(w http.ResponseWriter, r *http.Request) {
	c, ok := outcome.ParseColor(chi.URLParam(r, "color"))
	if !ok {
		apiError(w, fmt.Sprintf("unknown color %q", chi.URLParam(r, "color")), http.StatusBadRequest)
		return
	}

	s.filter.Toggle(c)
	apiJSON(w, s.newFilterView(), http.StatusOK)
}

// apiColors returns the legend: every color with its style, in legend order.
func (s *Server) apiColors(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, outcome.Styles(), http.StatusOK)
}

// apiOutcomes returns the outcome vocabulary in form order, each with the
// color it alone would produce.
func (s *Server) apiOutcomes(w http.ResponseWriter, r *http.Request) {
	type tagView struct {
		Tag   outcome.Tag   `json:"tag"`
		Color outcome.Color `json:"color"`
	}
	out := make([]tagView, 0, len(outcome.Tags))
	for _, t := range outcome.Tags {
		out = append(out, tagView{Tag: t, Color: outcome.Classify([]outcome.Tag{t})})
	}
	apiJSON(w, out, http.StatusOK)
}
