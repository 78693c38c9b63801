package tracking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"truckmatch/internal/modules/trip"
	"truckmatch/internal/types"
)

var t0 = time.Date(2026, 7, 2, 6, 30, 0, 0, time.UTC)

type fakeTrips struct {
	mu     sync.Mutex
	trips  map[types.ID]*trip.TripRoute
	events []trip.Event
	now    time.Time
}

func newFakeTrips() *fakeTrips {
	return &fakeTrips{trips: map[types.ID]*trip.TripRoute{}, now: t0}
}

func (f *fakeTrips) put(id, unitID types.ID, status trip.Status) {
	f.trips[id] = &trip.TripRoute{ID: id, UnitID: unitID, Status: status}
}

func (f *fakeTrips) Get(_ context.Context, id types.ID) (*trip.TripRoute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[id]
	if !ok {
		return nil, trip.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTrips) AddEvent(_ context.Context, cmd trip.AddEventCommand) (*trip.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[cmd.TripID]
	if !ok {
		return nil, trip.ErrNotFound
	}
	if t.Status.Terminal() {
		return nil, trip.ErrTerminalImmutable
	}
	f.now = f.now.Add(time.Minute)
	var by *string
	if cmd.Actor.ID != "" {
		id := cmd.Actor.ID
		by = &id
	}
	e := trip.Event{
		ID: types.NewID(), TripRouteID: cmd.TripID, Type: cmd.Type, Location: cmd.Location,
		Metadata: cmd.Metadata, PerformedBy: by, Timestamp: f.now,
	}
	f.events = append(f.events, e)
	return &e, nil
}

func (f *fakeTrips) History(_ context.Context, id types.ID) ([]trip.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []trip.Event
	for _, e := range f.events {
		if e.TripRouteID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeTrips) List(_ context.Context, lf trip.ListFilter) ([]trip.TripRoute, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []trip.TripRoute
	for _, t := range f.trips {
		if t.UnitID == lf.UnitID && t.Status == lf.Status {
			out = append(out, *t)
		}
	}
	return out, len(out), nil
}

type memPositions struct {
	mu  sync.Mutex
	pos map[types.ID]Position
	err error
}

func (m *memPositions) Put(_ context.Context, p Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.pos[p.UnitID] = p
	return nil
}

func (m *memPositions) Current(_ context.Context, unitID types.ID) (*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pos[unitID]
	if !ok {
		return nil, ErrNoUnitPosition
	}
	return &p, nil
}

func (m *memPositions) Nearby(_ context.Context, _ types.Point, _ float64, limit int) ([]NearbyUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []NearbyUnit{}
	for _, p := range m.pos {
		if len(out) == limit {
			break
		}
		out = append(out, NearbyUnit{Position: p})
	}
	return out, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func report(lat, lng float64) ReportCommand {
	return ReportCommand{TripID: "t1", Point: types.Point{Lat: lat, Lng: lng}, SpeedKmh: 72.5, AccuracyM: 8,
		Actor: trip.Actor{ID: "drv-7", Role: "driver"}}
}

func TestReportAppendsAndCaches(t *testing.T) {
	trips := newFakeTrips()
	trips.put("t1", "u1", trip.StatusInProgress)
	cache := &memPositions{pos: map[types.ID]Position{}}
	svc := NewService(trips, cache, discard())

	pos, err := svc.Report(context.Background(), report(32.78, -96.8))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if pos.UnitID != "u1" || pos.TripID != "t1" || pos.SpeedKmh != 72.5 || pos.AccuracyM != 8 {
		t.Fatalf("unexpected position: %+v", pos)
	}
	if pos.ReportedBy == nil || *pos.ReportedBy != "drv-7" {
		t.Fatalf("reporter not kept: %+v", pos.ReportedBy)
	}
	if len(trips.events) != 1 || trips.events[0].Type != trip.EventLocationUpdate {
		t.Fatalf("expected one location_update, got %+v", trips.events)
	}
	if cached := cache.pos["u1"]; cached.Coordinates.Lat != 32.78 {
		t.Fatalf("cache not written: %+v", cached)
	}
}

func TestReportRejections(t *testing.T) {
	trips := newFakeTrips()
	trips.put("t1", "u1", trip.StatusCompleted)
	svc := NewService(trips, nil, discard())
	ctx := context.Background()

	if _, err := svc.Report(ctx, report(32.78, -96.8)); !errors.Is(err, trip.ErrTerminalImmutable) {
		t.Fatalf("expected terminal trip rejection, got %v", err)
	}
	if _, err := svc.Report(ctx, report(91, 0)); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected range error, got %v", err)
	}
	missing := report(1, 1)
	missing.TripID = "nope"
	if _, err := svc.Report(ctx, missing); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(trips.events) != 0 {
		t.Fatalf("rejected reports stored events")
	}
}

// A failing cache must not fail the report; the trip history is the record.
func TestReportSurvivesCacheFailure(t *testing.T) {
	trips := newFakeTrips()
	trips.put("t1", "u1", trip.StatusAssigned)
	svc := NewService(trips, &memPositions{pos: map[types.ID]Position{}, err: errors.New("redis down")}, discard())

	if _, err := svc.Report(context.Background(), report(10, 10)); err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(trips.events) != 1 {
		t.Fatalf("event not stored")
	}
}

func TestCurrentAndBreadcrumbs(t *testing.T) {
	trips := newFakeTrips()
	trips.put("t1", "u1", trip.StatusInProgress)
	svc := NewService(trips, nil, discard())
	ctx := context.Background()

	if _, err := svc.CurrentForTrip(ctx, "t1"); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("expected no position yet, got %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.Report(ctx, report(30+float64(i), -97)); err != nil {
			t.Fatalf("report %d: %v", i, err)
		}
	}
	// Other trip events are not breadcrumbs.
	if _, err := trips.AddEvent(ctx, trip.AddEventCommand{TripID: "t1", Type: trip.EventDelayReported}); err != nil {
		t.Fatalf("add delay: %v", err)
	}

	cur, err := svc.CurrentForTrip(ctx, "t1")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur.Coordinates.Lat != 32 {
		t.Fatalf("expected latest fix, got %+v", cur.Coordinates)
	}

	crumbs, err := svc.Breadcrumbs(ctx, "t1", 0)
	if err != nil {
		t.Fatalf("breadcrumbs: %v", err)
	}
	if len(crumbs) != 3 || crumbs[0].Coordinates.Lat != 30 || crumbs[2].Coordinates.Lat != 32 {
		t.Fatalf("unexpected breadcrumbs: %+v", crumbs)
	}
	if !crumbs[0].RecordedAt.Before(crumbs[1].RecordedAt) {
		t.Fatalf("breadcrumbs not oldest first")
	}
	if limited, _ := svc.Breadcrumbs(ctx, "t1", 2); len(limited) != 2 || limited[1].Coordinates.Lat != 31 {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestCurrentForUnit(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit", func(t *testing.T) {
		cache := &memPositions{pos: map[types.ID]Position{"u1": {UnitID: "u1", Coordinates: types.Point{Lat: 1, Lng: 2}}}}
		svc := NewService(newFakeTrips(), cache, discard())
		pos, err := svc.CurrentForUnit(ctx, "u1")
		if err != nil || pos.Coordinates.Lng != 2 {
			t.Fatalf("pos = %+v, err = %v", pos, err)
		}
	})

	t.Run("falls back to active trip", func(t *testing.T) {
		trips := newFakeTrips()
		trips.put("old", "u1", trip.StatusCompleted)
		trips.put("t1", "u1", trip.StatusInProgress)
		svc := NewService(trips, nil, discard())
		if _, err := svc.Report(ctx, report(45, 7)); err != nil {
			t.Fatalf("report: %v", err)
		}
		pos, err := svc.CurrentForUnit(ctx, "u1")
		if err != nil || pos.TripID != "t1" || pos.Coordinates.Lat != 45 {
			t.Fatalf("pos = %+v, err = %v", pos, err)
		}
	})

	t.Run("no active trip", func(t *testing.T) {
		trips := newFakeTrips()
		trips.put("old", "u1", trip.StatusCancelled)
		svc := NewService(trips, &memPositions{pos: map[types.ID]Position{}}, discard())
		if _, err := svc.CurrentForUnit(ctx, "u1"); !errors.Is(err, ErrNoActiveTrip) {
			t.Fatalf("expected no active trip, got %v", err)
		}
	})

	t.Run("active trip without fixes", func(t *testing.T) {
		trips := newFakeTrips()
		trips.put("t1", "u1", trip.StatusAssigned)
		svc := NewService(trips, nil, discard())
		if _, err := svc.CurrentForUnit(ctx, "u1"); !errors.Is(err, ErrNoUnitPosition) {
			t.Fatalf("expected no unit position, got %v", err)
		}
	})
}

func TestNearbyRequiresCache(t *testing.T) {
	ctx := context.Background()
	if _, err := NewService(newFakeTrips(), nil, discard()).Nearby(ctx, types.Point{}, 10, 5); !errors.Is(err, ErrLiveDisabled) {
		t.Fatalf("expected disabled, got %v", err)
	}
	svc := NewService(newFakeTrips(), &memPositions{pos: map[types.ID]Position{}}, discard())
	if _, err := svc.Nearby(ctx, types.Point{}, 0, 5); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected radius validation, got %v", err)
	}
	got, err := svc.Nearby(ctx, types.Point{Lat: 1, Lng: 1}, 25, 0)
	if err != nil || got == nil {
		t.Fatalf("nearby = %v, %v", got, err)
	}
}
