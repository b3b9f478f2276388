package address

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evcraddock/canvass/internal/docstore"
	"github.com/evcraddock/canvass/internal/geocode"
	"github.com/evcraddock/canvass/internal/history"
	"github.com/evcraddock/canvass/internal/metrics"
)

// Collection is the document store collection holding address records.
const Collection = "addresses"

const defaultConcurrency = 4

// Geocoder resolves a one-line address to coordinates.
type Geocoder interface {
	Forward(ctx context.Context, address string) (geocode.Point, error)
}

// Store is the persistence the registry writes through.
type Store interface {
	Create(ctx context.Context, collection string, data interface{}) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]docstore.Document, error)
}

// Registry owns the set of address records. Every mutation is committed to
// the store before it becomes visible in memory.
type Registry struct {
	store       Store
	geocoder    Geocoder
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	concurrency int

	mu      sync.RWMutex
	records map[string]*record
	order   []string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics enables instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithConcurrency bounds the number of coordinate backfills run at once during Load.
func WithConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// New creates an empty registry. Call Load to populate it from the store.
// geocoder may be nil, in which case every Add must supply coordinates.
func New(store Store, geocoder Geocoder, opts ...Option) *Registry {
	r := &Registry{
		store:       store,
		geocoder:    geocoder,
		logger:      slog.Default(),
		now:         time.Now,
		concurrency: defaultConcurrency,
		records:     make(map[string]*record),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add creates a record with first as its only history entry. When coords is
// nil the formatted address is geocoded; a failed lookup returns a
// *GeocodeError and nothing is stored.
func (r *Registry) Add(ctx context.Context, fields Fields, coords *geocode.Point, first history.Entry) (Record, error) {
	fields = fields.trimmed()
	if err := fields.Validate(); err != nil {
		return Record{}, err
	}
	if first.Timestamp.IsZero() {
		first.Timestamp = r.now()
	}

	ledger := history.NewLedger()
	if _, err := ledger.Append(first); err != nil {
		return Record{}, err
	}

	if coords == nil {
		p, err := r.forward(ctx, fields.Format())
		if err != nil {
			r.metrics.ObserveRegistryOp("add", metrics.ResultError)
			return Record{}, err
		}
		coords = &p
	} else {
		p := *coords
		coords = &p
	}

	now := r.now()
	cur, _ := ledger.Current()
	doc := newDocument(fields, coords, now, ledger.All(), cur)

	id, err := r.store.Create(ctx, Collection, doc)
	if err != nil {
		r.metrics.ObserveRegistryOp("add", metrics.ResultError)
		return Record{}, &StoreError{Op: "create", Err: err}
	}

	rec := &record{id: id, fields: fields, coords: coords, updatedAt: now, ledger: ledger}

	r.mu.Lock()
	r.records[id] = rec
	r.order = append(r.order, id)
	n := len(r.records)
	snap := rec.snapshot()
	r.mu.Unlock()

	r.metrics.ObserveRegistryOp("add", metrics.ResultOK)
	r.metrics.SetAddresses(n)
	r.logger.Info("address added", "id", id, "address", fields.Format(), "color", snap.Color)
	return snap, nil
}

// Remove deletes a record from the store and then from memory.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.RLock()
	_, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	// A document already gone from the store only needs dropping from memory.
	if err := r.store.Delete(ctx, Collection, id); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		r.metrics.ObserveRegistryOp("remove", metrics.ResultError)
		return &StoreError{Op: "delete", Err: err}
	}

	r.mu.Lock()
	delete(r.records, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	n := len(r.records)
	r.mu.Unlock()

	r.metrics.ObserveRegistryOp("remove", metrics.ResultOK)
	r.metrics.SetAddresses(n)
	r.logger.Info("address removed", "id", id)
	return nil
}

// FindByID returns a snapshot of one record.
func (r *Registry) FindByID(id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return rec.snapshot(), nil
}

// List returns snapshots of every record in insertion order.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id].snapshot())
	}
	return out
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// AddHistoryEntry appends a visit to a record's ledger and persists the new
// history along with the current projection.
func (r *Registry) AddHistoryEntry(ctx context.Context, id string, e history.Entry) (Record, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	var ledger *history.Ledger
	if ok {
		ledger = rec.ledger.Clone()
	}
	r.mu.RUnlock()
	if !ok {
		return Record{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = r.now()
	}
	if _, err := ledger.Append(e); err != nil {
		return Record{}, err
	}

	now := r.now()
	if err := r.store.Update(ctx, Collection, id, currentFields(ledger, now)); err != nil {
		r.metrics.ObserveRegistryOp("history", metrics.ResultError)
		return Record{}, &StoreError{Op: "update", Err: err}
	}

	r.mu.Lock()
	rec, ok = r.records[id]
	if !ok {
		r.mu.Unlock()
		return Record{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	rec.ledger = ledger
	rec.updatedAt = now
	snap := rec.snapshot()
	r.mu.Unlock()

	r.metrics.ObserveRegistryOp("history", metrics.ResultOK)
	r.logger.Info("visit recorded", "id", id, "visited_by", e.VisitedBy, "color", snap.Color)
	return snap, nil
}

// BackfillCoordinates geocodes a record that has no coordinates and stores
// the result. It reports whether coordinates were written. Records that
// already have coordinates are left alone. Failures are logged and returned;
// the record is retried on the next call.
func (r *Registry) BackfillCoordinates(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	var (
		fields Fields
		placed bool
	)
	if ok {
		fields = rec.fields
		placed = rec.coords != nil
	}
	r.mu.RUnlock()

	if !ok {
		return false, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if placed {
		return false, nil
	}

	log := r.logger.With("id", id, "address", fields.Format())

	p, err := r.forward(ctx, fields.Format())
	if err != nil {
		r.metrics.ObserveRegistryOp("backfill", metrics.ResultError)
		log.Warn("coordinate backfill failed", "error", err)
		return false, err
	}

	now := r.now()
	if err := r.store.Update(ctx, Collection, id, map[string]interface{}{
		"coordinates": p,
		"updatedAt":   now.UnixMilli(),
	}); err != nil {
		r.metrics.ObserveRegistryOp("backfill", metrics.ResultError)
		log.Warn("saving backfilled coordinates failed", "error", err)
		return false, &StoreError{Op: "update", Err: err}
	}

	r.mu.Lock()
	if rec, ok := r.records[id]; ok {
		rec.coords = &p
		rec.updatedAt = now
	}
	r.mu.Unlock()

	r.metrics.ObserveRegistryOp("backfill", metrics.ResultOK)
	log.Debug("coordinates backfilled", "lat", p.Lat, "lon", p.Lon)
	return true, nil
}

// LoadResult summarizes a Load.
type LoadResult struct {
	Loaded   int `json:"loaded"`
	Migrated int `json:"migrated"`
	Geocoded int `json:"geocoded"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Load replaces the registry contents with every stored record and then
// geocodes the records that have no coordinates. It is LoadRecords followed
// by BackfillMissing.
func (r *Registry) Load(ctx context.Context) (LoadResult, error) {
	res, err := r.LoadRecords(ctx)
	if err != nil {
		return res, err
	}

	geocoded, failed, err := r.BackfillMissing(ctx)
	res.Geocoded = geocoded
	res.Failed += failed
	if err != nil {
		return res, err
	}
	return res, nil
}

// LoadRecords replaces the registry contents with every stored record.
// Records written before history tracking get their legacy visit fields
// migrated into a one-entry history.
//
// When saving a migrated history fails, the synthesized entry still backs
// the in-memory record and the store keeps the legacy fields, so the next
// AddHistoryEntry writes it ahead of the new visit and the next load retries
// the migration.
func (r *Registry) LoadRecords(ctx context.Context) (LoadResult, error) {
	start := time.Now()
	var res LoadResult

	docs, err := r.store.List(ctx, Collection)
	if err != nil {
		return res, &StoreError{Op: "list", Err: err}
	}

	records := make(map[string]*record, len(docs))
	order := make([]string, 0, len(docs))

	for _, d := range docs {
		var doc document
		if err := d.Decode(&doc); err != nil {
			res.Skipped++
			r.logger.Warn("skipping unreadable address record", "id", d.ID, "error", err)
			continue
		}

		ledger, migrated := history.Materialize(doc.History, doc.legacy(), r.now())
		if migrated {
			if err := r.store.Update(ctx, Collection, d.ID, map[string]interface{}{
				"history": ledger.All(),
			}); err != nil {
				res.Failed++
				r.metrics.ObserveRegistryOp("migrate", metrics.ResultError)
				r.logger.Warn("saving migrated history failed, will retry", "id", d.ID, "error", err)
			} else {
				res.Migrated++
				r.metrics.ObserveRegistryOp("migrate", metrics.ResultOK)
			}
		}

		records[d.ID] = &record{
			id:        d.ID,
			fields:    doc.fields(),
			coords:    doc.Coordinates,
			updatedAt: doc.updatedAt(),
			ledger:    ledger,
		}
		order = append(order, d.ID)
	}

	r.mu.Lock()
	r.records = records
	r.order = order
	r.mu.Unlock()
	res.Loaded = len(order)
	r.metrics.SetAddresses(res.Loaded)

	elapsed := time.Since(start)
	r.metrics.ObserveLoad(elapsed)
	r.logger.Info("addresses loaded",
		"loaded", res.Loaded,
		"migrated", res.Migrated,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"duration", elapsed,
	)
	return res, nil
}

// BackfillMissing geocodes every record without coordinates, a few at a
// time. One failure does not stop the others; it reports how many records
// were placed and how many failed. The only error returned is ctx's.
func (r *Registry) BackfillMissing(ctx context.Context) (geocoded, failed int, err error) {
	if r.geocoder == nil {
		return 0, 0, nil
	}

	r.mu.RLock()
	var unplaced []string
	for _, id := range r.order {
		if r.records[id].coords == nil {
			unplaced = append(unplaced, id)
		}
	}
	r.mu.RUnlock()
	if len(unplaced) == 0 {
		return 0, 0, nil
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var nGeocoded, nFailed atomic.Int64
	for _, id := range unplaced {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			ok, err := r.BackfillCoordinates(gctx, id)
			switch {
			case err != nil:
				nFailed.Add(1)
			case ok:
				nGeocoded.Add(1)
			}
			return nil // one record must not abort the rest
		})
	}
	if err := g.Wait(); err != nil {
		return int(nGeocoded.Load()), int(nFailed.Load()), fmt.Errorf("backfilling coordinates: %w", err)
	}

	geocoded, failed = int(nGeocoded.Load()), int(nFailed.Load())
	r.logger.Info("coordinate backfill finished",
		"pending", len(unplaced),
		"geocoded", geocoded,
		"failed", failed,
		"duration", time.Since(start),
	)
	if err := ctx.Err(); err != nil {
		return geocoded, failed, err
	}
	return geocoded, failed, nil
}

func (r *Registry) forward(ctx context.Context, addr string) (geocode.Point, error) {
	if r.geocoder == nil {
		return geocode.Point{}, &GeocodeError{Address: addr, Err: errors.New("no geocoder configured")}
	}

	p, err := r.geocoder.Forward(ctx, addr)
	switch {
	case err == nil:
		r.metrics.ObserveGeocode("forward", metrics.ResultOK)
		return p, nil
	case errors.Is(err, geocode.ErrNotFound):
		r.metrics.ObserveGeocode("forward", metrics.ResultNotFound)
	default:
		r.metrics.ObserveGeocode("forward", metrics.ResultError)
	}
	return geocode.Point{}, &GeocodeError{Address: addr, Err: err}
}
