// README: Tracking service; location reports are appended to the trip history and mirrored into the live unit cache.
package tracking

import (
	"context"
	"errors"
	"log/slog"

	"truckmatch/internal/modules/trip"
	"truckmatch/internal/types"
)

// Trips is the slice of the trip service tracking builds on.
type Trips interface {
	Get(ctx context.Context, id types.ID) (*trip.TripRoute, error)
	AddEvent(ctx context.Context, cmd trip.AddEventCommand) (*trip.Event, error)
	History(ctx context.Context, id types.ID) ([]trip.Event, error)
	List(ctx context.Context, f trip.ListFilter) ([]trip.TripRoute, int, error)
}

// Positions caches the latest position per unit.
type Positions interface {
	Put(ctx context.Context, p Position) error
	Current(ctx context.Context, unitID types.ID) (*Position, error)
	Nearby(ctx context.Context, center types.Point, radiusKm float64, limit int) ([]NearbyUnit, error)
}

type Service struct {
	trips     Trips
	positions Positions
	log       *slog.Logger
}

// NewService accepts a nil positions cache; unit lookups then fall back to the unit's active trip.
func NewService(trips Trips, positions Positions, log *slog.Logger) *Service {
	return &Service{trips: trips, positions: positions, log: log}
}

type ReportCommand struct {
	TripID    types.ID
	Point     types.Point
	Address   string
	SpeedKmh  float64
	AccuracyM float64
	Actor     trip.Actor
}

// Report records a GPS fix for an open trip.
func (s *Service) Report(ctx context.Context, cmd ReportCommand) (*Position, error) {
	if cmd.Point.Lat < -90 || cmd.Point.Lat > 90 || cmd.Point.Lng < -180 || cmd.Point.Lng > 180 {
		return nil, ErrCoordinatesRange
	}
	t, err := s.trips.Get(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}
	point := cmd.Point
	e, err := s.trips.AddEvent(ctx, trip.AddEventCommand{
		TripID:   cmd.TripID,
		Type:     trip.EventLocationUpdate,
		Location: &types.Location{Address: cmd.Address, Coordinates: &point},
		Metadata: types.Metadata{speedKey: cmd.SpeedKmh, accuracyKey: cmd.AccuracyM},
		Actor:    cmd.Actor,
	})
	if err != nil {
		return nil, err
	}
	pos, _ := fromEvent(*e, t.UnitID)

	if s.positions != nil {
		if err := s.positions.Put(ctx, pos); err != nil {
			s.log.Warn("cache unit position", "unit_id", t.UnitID, "trip_id", t.ID, "error", err)
		}
	}
	return &pos, nil
}

// CurrentForTrip returns the trip's most recent position.
func (s *Service) CurrentForTrip(ctx context.Context, tripID types.ID) (*Position, error) {
	t, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	events, err := s.trips.History(ctx, tripID)
	if err != nil {
		return nil, err
	}
	for i := len(events) - 1; i >= 0; i-- {
		if pos, ok := fromEvent(events[i], t.UnitID); ok {
			return &pos, nil
		}
	}
	return nil, ErrNoPosition
}

// Breadcrumbs returns up to limit positions of the trip, oldest first.
func (s *Service) Breadcrumbs(ctx context.Context, tripID types.ID, limit int) ([]Position, error) {
	if limit < 1 {
		limit = DefaultBreadcrumbs
	}
	if limit > MaxBreadcrumbs {
		limit = MaxBreadcrumbs
	}
	t, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	events, err := s.trips.History(ctx, tripID)
	if err != nil {
		return nil, err
	}
	out := []Position{}
	for _, e := range events {
		if len(out) == limit {
			break
		}
		if pos, ok := fromEvent(e, t.UnitID); ok {
			out = append(out, pos)
		}
	}
	return out, nil
}

// CurrentForUnit prefers the live cache and otherwise reads the last fix of the unit's active trip.
func (s *Service) CurrentForUnit(ctx context.Context, unitID types.ID) (*Position, error) {
	if s.positions != nil {
		pos, err := s.positions.Current(ctx, unitID)
		switch {
		case err == nil:
			return pos, nil
		case !errors.Is(err, ErrNoUnitPosition):
			s.log.Warn("read cached unit position", "unit_id", unitID, "error", err)
		}
	}

	active, err := s.activeTrip(ctx, unitID)
	if err != nil {
		return nil, err
	}
	pos, err := s.CurrentForTrip(ctx, active.ID)
	if errors.Is(err, ErrNoPosition) {
		return nil, ErrNoUnitPosition
	}
	return pos, err
}

func (s *Service) activeTrip(ctx context.Context, unitID types.ID) (*trip.TripRoute, error) {
	for _, st := range trip.BusyStatuses {
		trips, _, err := s.trips.List(ctx, trip.ListFilter{UnitID: unitID, Status: st, Page: 1, Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(trips) > 0 {
			return &trips[0], nil
		}
	}
	return nil, ErrNoActiveTrip
}

// Nearby lists cached unit positions within radiusKm of center, closest first.
func (s *Service) Nearby(ctx context.Context, center types.Point, radiusKm float64, limit int) ([]NearbyUnit, error) {
	if s.positions == nil {
		return nil, ErrLiveDisabled
	}
	if center.Lat < -90 || center.Lat > 90 || center.Lng < -180 || center.Lng > 180 {
		return nil, ErrCoordinatesRange
	}
	if radiusKm <= 0 {
		return nil, types.Validation("radius_km must be positive")
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.positions.Nearby(ctx, center, radiusKm, limit)
}
