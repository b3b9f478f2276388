package address

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/evcraddock/canvass/internal/docstore"
	"github.com/evcraddock/canvass/internal/geocode"
	"github.com/evcraddock/canvass/internal/history"
	"github.com/evcraddock/canvass/internal/metrics"
	"github.com/evcraddock/canvass/internal/outcome"
)

type fakeGeocoder struct {
	mu     sync.Mutex
	points map[string]geocode.Point
	calls  []string
}

func (g *fakeGeocoder) Forward(_ context.Context, addr string) (geocode.Point, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, addr)
	p, ok := g.points[addr]
	if !ok {
		return geocode.Point{}, geocode.ErrNotFound
	}
	return p, nil
}

func (g *fakeGeocoder) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// failingStore wraps Memory and can be told to fail writes.
type failingStore struct {
	*docstore.Memory
	mu      sync.Mutex
	fail    bool
	creates int
	updates int
}

var errStoreDown = errors.New("store unavailable")

func (s *failingStore) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = v
}

func (s *failingStore) failing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail
}

func (s *failingStore) Create(ctx context.Context, collection string, data interface{}) (string, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	if s.failing() {
		return "", errStoreDown
	}
	return s.Memory.Create(ctx, collection, data)
}

func (s *failingStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	if s.failing() {
		return errStoreDown
	}
	return s.Memory.Update(ctx, collection, id, fields)
}

func (s *failingStore) Delete(ctx context.Context, collection, id string) error {
	if s.failing() {
		return errStoreDown
	}
	return s.Memory.Delete(ctx, collection, id)
}

const (
	mainSt = "123 Main St, Louisville, KY 40202"
	elmSt  = "45 Elm St, Louisville, KY 40204"
)

var mainFields = Fields{HouseNumber: "123", StreetName: "Main St", City: "Louisville", State: "KY", Zip: "40202"}

func testRegistry(t *testing.T) (*Registry, *failingStore, *fakeGeocoder) {
	t.Helper()
	store := &failingStore{Memory: docstore.NewMemory()}
	geo := &fakeGeocoder{points: map[string]geocode.Point{
		mainSt: {Lat: 38.25, Lon: -85.75},
		elmSt:  {Lat: 38.22, Lon: -85.70},
	}}
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := New(store, geo,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return clock }),
	)
	return r, store, geo
}

func visit(by string, tags ...outcome.Tag) history.Entry {
	return history.Entry{Results: tags, VisitedBy: by}
}

func TestFieldsValidate(t *testing.T) {
	tests := []struct {
		name  string
		f     Fields
		field string
	}{
		{"complete", mainFields, ""},
		{"missing house number", Fields{StreetName: "Main St", City: "L", State: "KY", Zip: "1"}, "houseNumber"},
		{"blank street", Fields{HouseNumber: "1", StreetName: "  ", City: "L", State: "KY", Zip: "1"}, "streetName"},
		{"missing zip", Fields{HouseNumber: "1", StreetName: "Main", City: "L", State: "KY"}, "zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.f.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *history.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestFieldsFormat(t *testing.T) {
	if got := mainFields.Format(); got != mainSt {
		t.Errorf("Format() = %q, want %q", got, mainSt)
	}
}

func TestAddGeocodes(t *testing.T) {
	r, _, geo := testRegistry(t)

	rec, err := r.Add(context.Background(), mainFields, nil, visit("Ann", outcome.SharedGospel))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected store-assigned id")
	}
	if rec.Coordinates == nil || rec.Coordinates.Lat != 38.25 {
		t.Errorf("coordinates = %+v", rec.Coordinates)
	}
	if rec.Color != outcome.Green {
		t.Errorf("color = %s, want green", rec.Color)
	}
	if len(rec.History) != 1 || rec.History[0].Timestamp.IsZero() {
		t.Errorf("history = %+v", rec.History)
	}
	if geo.callCount() != 1 {
		t.Errorf("geocoder calls = %d, want 1", geo.callCount())
	}

	got, err := r.FindByID(rec.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Current.VisitedBy != "Ann" {
		t.Errorf("current visitedBy = %q", got.Current.VisitedBy)
	}
}

func TestAddWithCoordinatesSkipsGeocoder(t *testing.T) {
	r, _, geo := testRegistry(t)

	p := &geocode.Point{Lat: 1, Lon: 2}
	rec, err := r.Add(context.Background(), mainFields, p, visit("Ann", outcome.NoAnswer))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if geo.callCount() != 0 {
		t.Errorf("geocoder called %d times", geo.callCount())
	}
	if *rec.Coordinates != *p {
		t.Errorf("coordinates = %+v, want %+v", rec.Coordinates, p)
	}

	// The caller's value is copied.
	p.Lat = 99
	got, _ := r.FindByID(rec.ID)
	if got.Coordinates.Lat != 1 {
		t.Error("registry shares caller's coordinates")
	}
}

func TestAddGeocodeNotFound(t *testing.T) {
	r, store, _ := testRegistry(t)

	fields := Fields{HouseNumber: "1", StreetName: "Nowhere Ln", City: "X", State: "KY", Zip: "0"}
	_, err := r.Add(context.Background(), fields, nil, visit("Ann", outcome.Busy))

	var ge *GeocodeError
	if !errors.As(err, &ge) {
		t.Fatalf("err = %v, want GeocodeError", err)
	}
	if !errors.Is(err, geocode.ErrNotFound) {
		t.Error("GeocodeError should wrap geocode.ErrNotFound")
	}
	if store.creates != 0 {
		t.Errorf("store Create called %d times, want 0", store.creates)
	}
	if r.Len() != 0 {
		t.Errorf("registry has %d records", r.Len())
	}
}

func TestAddValidation(t *testing.T) {
	r, store, geo := testRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		fields Fields
		entry  history.Entry
	}{
		{"missing city", Fields{HouseNumber: "1", StreetName: "A", State: "KY", Zip: "1"}, visit("Ann", outcome.Busy)},
		{"no results", mainFields, visit("Ann")},
		{"no visitor", mainFields, visit("", outcome.Busy)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Add(ctx, tt.fields, nil, tt.entry)
			var ve *history.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}

	if store.creates != 0 || geo.callCount() != 0 {
		t.Errorf("creates = %d, geocodes = %d, want 0", store.creates, geo.callCount())
	}
}

func TestAddStoreFailure(t *testing.T) {
	r, store, _ := testRegistry(t)
	store.setFail(true)

	_, err := r.Add(context.Background(), mainFields, nil, visit("Ann", outcome.Busy))
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StoreError", err)
	}
	if !errors.Is(err, errStoreDown) {
		t.Error("StoreError should wrap the cause")
	}
	if r.Len() != 0 {
		t.Errorf("registry has %d records after failed create", r.Len())
	}
}

func TestAddPersistsDocumentShape(t *testing.T) {
	r, store, _ := testRegistry(t)
	ctx := context.Background()

	e := visit("Ann", outcome.SharedGospel, outcome.FollowUp)
	e.FirstName = "Bob"
	e.LastName = "Smith"
	e.Comment = "come back sunday"
	rec, err := r.Add(ctx, mainFields, nil, e)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	d, err := store.Get(ctx, Collection, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var raw map[string]interface{}
	if err := d.Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}

	for _, key := range []string{"houseNumber", "streetName", "city", "state", "zip", "coordinates", "updatedAt", "results", "firstName", "lastName", "visitedBy", "history"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("stored document missing %q", key)
		}
	}
	if raw["visitedBy"] != "Ann" || raw["firstName"] != "Bob" {
		t.Errorf("current projection not stored: %v", raw)
	}
	hist, ok := raw["history"].([]interface{})
	if !ok || len(hist) != 1 {
		t.Fatalf("history = %v", raw["history"])
	}
	entry := hist[0].(map[string]interface{})
	if entry["comment"] != "come back sunday" {
		t.Errorf("entry comment = %v", entry["comment"])
	}
	if _, ok := entry["timestamp"].(float64); !ok {
		t.Errorf("entry timestamp = %v, want epoch millis", entry["timestamp"])
	}
}

func TestAddHistoryEntryLatestWins(t *testing.T) {
	r, _, _ := testRegistry(t)
	ctx := context.Background()

	rec, err := r.Add(ctx, mainFields, nil, visit("Ann", outcome.SharedGospel))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if rec.Color != outcome.Green {
		t.Fatalf("color = %s, want green", rec.Color)
	}

	updated, err := r.AddHistoryEntry(ctx, rec.ID, visit("Cal", outcome.RequestedNoContact))
	if err != nil {
		t.Fatalf("AddHistoryEntry: %v", err)
	}
	if updated.Color != outcome.Red {
		t.Errorf("color = %s, want red", updated.Color)
	}
	if len(updated.Current.Results) != 1 || updated.Current.Results[0] != outcome.RequestedNoContact {
		t.Errorf("current results = %v", updated.Current.Results)
	}
	if len(updated.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(updated.History))
	}
	first := updated.History[0]
	if first.VisitedBy != "Ann" || len(first.Results) != 1 || first.Results[0] != outcome.SharedGospel {
		t.Errorf("first entry changed: %+v", first)
	}
}

func TestAddHistoryEntryPersists(t *testing.T) {
	r, store, _ := testRegistry(t)
	ctx := context.Background()

	rec, err := r.Add(ctx, mainFields, nil, visit("Ann", outcome.NoAnswer))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.AddHistoryEntry(ctx, rec.ID, visit("Cal", outcome.Believer)); err != nil {
		t.Fatalf("AddHistoryEntry: %v", err)
	}

	// A fresh registry over the same store sees the new state.
	r2 := New(store, nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if _, err := r2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := r2.FindByID(rec.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if len(got.History) != 2 || got.Current.VisitedBy != "Cal" || got.Color != outcome.Yellow {
		t.Errorf("reloaded record = %+v", got)
	}
}

func TestAddHistoryEntryErrors(t *testing.T) {
	r, store, _ := testRegistry(t)
	ctx := context.Background()

	if _, err := r.AddHistoryEntry(ctx, "missing", visit("Ann", outcome.Busy)); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}

	rec, err := r.Add(ctx, mainFields, nil, visit("Ann", outcome.Busy))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	var ve *history.ValidationError
	if _, err := r.AddHistoryEntry(ctx, rec.ID, visit("Ann")); !errors.As(err, &ve) {
		t.Errorf("empty results: err = %v, want ValidationError", err)
	}

	store.setFail(true)
	var se *StoreError
	if _, err := r.AddHistoryEntry(ctx, rec.ID, visit("Cal", outcome.RequestedNoContact)); !errors.As(err, &se) {
		t.Errorf("store down: err = %v, want StoreError", err)
	}

	got, _ := r.FindByID(rec.ID)
	if len(got.History) != 1 || got.Color != outcome.Yellow {
		t.Errorf("memory changed after failed commits: %+v", got)
	}
}

func TestRemove(t *testing.T) {
	r, store, _ := testRegistry(t)
	ctx := context.Background()

	rec, err := r.Add(ctx, mainFields, nil, visit("Ann", outcome.Busy))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	store.setFail(true)
	var se *StoreError
	if err := r.Remove(ctx, rec.ID); !errors.As(err, &se) {
		t.Fatalf("err = %v, want StoreError", err)
	}
	if _, err := r.FindByID(rec.ID); err != nil {
		t.Error("record removed from memory after failed delete")
	}

	store.setFail(false)
	if err := r.Remove(ctx, rec.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := r.FindByID(rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID after remove: err = %v", err)
	}
	if _, err := store.Get(ctx, Collection, rec.ID); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("document still stored: err = %v", err)
	}

	if err := r.Remove(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove: err = %v, want ErrNotFound", err)
	}
}

func TestListOrderAndIsolation(t *testing.T) {
	r, _, _ := testRegistry(t)
	ctx := context.Background()

	a, err := r.Add(ctx, mainFields, nil, visit("Ann", outcome.Busy))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	elm := Fields{HouseNumber: "45", StreetName: "Elm St", City: "Louisville", State: "KY", Zip: "40204"}
	b, err := r.Add(ctx, elm, nil, visit("Ann", outcome.NoAnswer))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	list := r.List()
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("list = %+v", list)
	}

	list[0].History[0].VisitedBy = "Mallory"
	list[0].Coordinates.Lat = 0
	got, _ := r.FindByID(a.ID)
	if got.History[0].VisitedBy != "Ann" || got.Coordinates.Lat == 0 {
		t.Error("snapshot mutation leaked into registry")
	}
}

func TestBackfillCoordinates(t *testing.T) {
	r, store, geo := testRegistry(t)
	ctx := context.Background()

	if err := store.Put(ctx, Collection, "a1", document{
		HouseNumber: "123", StreetName: "Main St", City: "Louisville", State: "KY", Zip: "40202",
		History: []history.Entry{visit("Ann", outcome.Busy)},
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := r.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	calls := geo.callCount()

	got, _ := r.FindByID("a1")
	if got.Coordinates == nil {
		t.Fatal("Load did not backfill coordinates")
	}

	ok, err := r.BackfillCoordinates(ctx, "a1")
	if err != nil || ok {
		t.Errorf("second backfill = %v, %v; want no-op", ok, err)
	}
	if geo.callCount() != calls {
		t.Error("backfill geocoded a record that already had coordinates")
	}

	d, err := store.Get(ctx, Collection, "a1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var doc document
	if err := d.Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Coordinates == nil || doc.Coordinates.Lat != 38.25 {
		t.Errorf("stored coordinates = %+v", doc.Coordinates)
	}

	if _, err := r.BackfillCoordinates(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: err = %v", err)
	}
}

func TestLoadIsolatesBackfillFailures(t *testing.T) {
	r, store, _ := testRegistry(t)
	ctx := context.Background()

	seed := map[string]document{
		"ok-1": {HouseNumber: "123", StreetName: "Main St", City: "Louisville", State: "KY", Zip: "40202"},
		"bad":  {HouseNumber: "9", StreetName: "Unknown Rd", City: "Nowhere", State: "KY", Zip: "00000"},
		"ok-2": {HouseNumber: "45", StreetName: "Elm St", City: "Louisville", State: "KY", Zip: "40204"},
		"placed": {
			HouseNumber: "1", StreetName: "Placed Ct", City: "Louisville", State: "KY", Zip: "40202",
			Coordinates: &geocode.Point{Lat: 1, Lon: 1},
		},
	}
	for _, id := range []string{"ok-1", "bad", "ok-2", "placed"} {
		doc := seed[id]
		doc.History = []history.Entry{visit("Ann", outcome.Busy)}
		if err := store.Put(ctx, Collection, id, doc); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	res, err := r.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Loaded != 4 || res.Geocoded != 2 || res.Failed != 1 {
		t.Errorf("result = %+v, want loaded 4, geocoded 2, failed 1", res)
	}

	bad, err := r.FindByID("bad")
	if err != nil {
		t.Fatalf("failed record not loaded: %v", err)
	}
	if bad.Coordinates != nil {
		t.Error("failed record has coordinates")
	}

	list := r.List()
	if list[0].ID != "ok-1" || list[3].ID != "placed" {
		t.Errorf("load order not preserved: %s ... %s", list[0].ID, list[3].ID)
	}
}

func TestLoadMigratesLegacyOnce(t *testing.T) {
	r, store, _ := testRegistry(t)
	ctx := context.Background()

	updatedAt := time.Date(2023, 9, 10, 15, 0, 0, 0, time.UTC)
	if err := store.Put(ctx, Collection, "old", map[string]interface{}{
		"houseNumber": "123", "streetName": "Main St", "city": "Louisville", "state": "KY", "zip": "40202",
		"coordinates": map[string]float64{"lat": 38.25, "lon": -85.75},
		"results":     []string{"Shared Gospel"},
		"comments":    "nice family",
		"updatedAt":   updatedAt.UnixMilli(),
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	res, err := r.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Migrated != 1 {
		t.Errorf("migrated = %d, want 1", res.Migrated)
	}

	got, _ := r.FindByID("old")
	if len(got.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(got.History))
	}
	e := got.History[0]
	if e.Comment != "nice family" || !e.Timestamp.Equal(updatedAt) || e.Color() != outcome.Green {
		t.Errorf("synthesized entry = %+v", e)
	}

	updates := store.updates
	res, err = r.Load(ctx)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if res.Migrated != 0 {
		t.Errorf("second load migrated %d records", res.Migrated)
	}
	if store.updates != updates {
		t.Error("second load wrote to the store")
	}
	got, _ = r.FindByID("old")
	if len(got.History) != 1 {
		t.Errorf("history length after reload = %d, want 1", len(got.History))
	}
}

func putLegacy(t *testing.T, store *failingStore, id string) {
	t.Helper()
	if err := store.Put(context.Background(), Collection, id, map[string]interface{}{
		"houseNumber": "1", "streetName": "A", "city": "B", "state": "KY", "zip": "1",
		"coordinates": map[string]float64{"lat": 1, "lon": 1},
		"updatedAt":   int64(1000),
		"results":     []string{"Busy"},
		"comments":    "legacy note",
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestLoadMigrationFailureKeepsLegacyEntry(t *testing.T) {
	r, store, _ := testRegistry(t)
	ctx := context.Background()

	putLegacy(t, store, "old")
	store.setFail(true)

	res, err := r.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Migrated != 0 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}

	got, err := r.FindByID("old")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if len(got.History) != 1 || got.History[0].Comment != "legacy note" {
		t.Fatalf("history = %+v, want the legacy entry", got.History)
	}
	if got.Color != outcome.Yellow {
		t.Errorf("color = %q, want yellow", got.Color)
	}

	doc, err := store.Get(ctx, Collection, "old")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var stored document
	if err := doc.Decode(&stored); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(stored.History) != 0 {
		t.Errorf("store history = %+v, want none after failed save", stored.History)
	}
}

func TestMigrationFailureThenVisitKeepsLegacyEntry(t *testing.T) {
	r, store, _ := testRegistry(t)
	ctx := context.Background()

	putLegacy(t, store, "old")
	store.setFail(true)
	if _, err := r.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	store.setFail(false)

	if _, err := r.AddHistoryEntry(ctx, "old", visit("Ann", outcome.SharedGospel)); err != nil {
		t.Fatalf("AddHistoryEntry: %v", err)
	}

	reloaded := New(store, &fakeGeocoder{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	res, err := reloaded.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if res.Migrated != 0 {
		t.Errorf("migrated again on reload: %+v", res)
	}

	got, err := reloaded.FindByID("old")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if len(got.History) != 2 {
		t.Fatalf("history has %d entries, want 2: %+v", len(got.History), got.History)
	}
	if got.History[0].Comment != "legacy note" || got.History[0].Results[0] != outcome.Busy {
		t.Errorf("first entry = %+v, want legacy visit", got.History[0])
	}
	if got.History[1].VisitedBy != "Ann" || got.Color != outcome.Green {
		t.Errorf("latest = %+v color %q", got.History[1], got.Color)
	}
}

func TestMigrationFailureRetriedOnReload(t *testing.T) {
	r, store, _ := testRegistry(t)
	ctx := context.Background()

	putLegacy(t, store, "old")
	store.setFail(true)
	if _, err := r.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	store.setFail(false)

	res, err := r.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if res.Migrated != 1 || res.Failed != 0 {
		t.Errorf("result = %+v, want one migration", res)
	}
	got, _ := r.FindByID("old")
	if len(got.History) != 1 {
		t.Errorf("history = %+v", got.History)
	}
}

func TestLoadRecordsDefersBackfill(t *testing.T) {
	r, store, geo := testRegistry(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, Collection, map[string]interface{}{
		"houseNumber": "123", "streetName": "Main St", "city": "Louisville", "state": "KY", "zip": "40202",
		"history": []map[string]interface{}{{"timestamp": 1, "results": []string{"Busy"}, "visitedBy": "Ann"}},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := r.LoadRecords(ctx)
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	if res.Loaded != 1 || res.Geocoded != 0 {
		t.Errorf("result = %+v", res)
	}
	if n := geo.callCount(); n != 0 {
		t.Errorf("geocoder called %d times before backfill", n)
	}

	geocoded, failed, err := r.BackfillMissing(ctx)
	if err != nil {
		t.Fatalf("BackfillMissing: %v", err)
	}
	if geocoded != 1 || failed != 0 {
		t.Errorf("geocoded = %d, failed = %d", geocoded, failed)
	}
	list := r.List()
	if len(list) != 1 || list[0].Coordinates == nil {
		t.Fatalf("record not placed: %+v", list)
	}

	if geocoded, _, _ := r.BackfillMissing(ctx); geocoded != 0 {
		t.Errorf("second backfill geocoded %d, want 0", geocoded)
	}
}

func TestBackfillMissingCanceled(t *testing.T) {
	r, store, geo := testRegistry(t)

	if _, err := store.Create(context.Background(), Collection, map[string]interface{}{
		"houseNumber": "123", "streetName": "Main St", "city": "Louisville", "state": "KY", "zip": "40202",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.LoadRecords(context.Background()); err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := r.BackfillMissing(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if n := geo.callCount(); n != 0 {
		t.Errorf("geocoder called %d times after cancel", n)
	}
}

func TestLoadSkipsUnreadable(t *testing.T) {
	r, store, _ := testRegistry(t)
	ctx := context.Background()

	if err := store.Put(ctx, Collection, "weird", map[string]interface{}{"houseNumber": 12}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	res, err := r.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Skipped != 1 || res.Loaded != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	store := &failingStore{Memory: docstore.NewMemory()}
	geo := &fakeGeocoder{points: map[string]geocode.Point{mainSt: {Lat: 1, Lon: 1}}}
	r := New(store, geo, WithMetrics(m), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ctx := context.Background()

	if _, err := r.Add(ctx, mainFields, nil, visit("Ann", outcome.Busy)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	other := Fields{HouseNumber: "2", StreetName: "B", City: "C", State: "KY", Zip: "1"}
	if _, err := r.Add(ctx, other, nil, visit("Ann", outcome.Busy)); err == nil {
		t.Fatal("expected geocode failure")
	}

	if got := testutil.ToFloat64(m.Addresses); got != 1 {
		t.Errorf("addresses gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("forward", metrics.ResultNotFound)); got != 1 {
		t.Errorf("not found geocodes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RegistryOps.WithLabelValues("add", metrics.ResultOK)); got != 1 {
		t.Errorf("successful adds = %v, want 1", got)
	}
}
