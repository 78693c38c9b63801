// README: Tracking read models; a position is one location_update of a trip, and the latest one per unit is cached live.
package tracking

import (
	"time"

	"truckmatch/internal/modules/trip"
	"truckmatch/internal/types"
)

type Position struct {
	TripID      types.ID    `json:"trip_route_id"`
	UnitID      types.ID    `json:"unit_id,omitempty"`
	Coordinates types.Point `json:"coordinates"`
	Address     string      `json:"address,omitempty"`
	SpeedKmh    float64     `json:"speed_kmh"`
	AccuracyM   float64     `json:"accuracy_m"`
	ReportedBy  *string     `json:"reported_by,omitempty"`
	RecordedAt  time.Time   `json:"recorded_at"`
}

type NearbyUnit struct {
	Position
	DistanceKm float64 `json:"distance_km"`
}

const (
	speedKey    = "speed_kmh"
	accuracyKey = "accuracy_m"
)

// fromEvent reads a position out of a location_update event. Events without coordinates are skipped.
func fromEvent(e trip.Event, unitID types.ID) (Position, bool) {
	if e.Type != trip.EventLocationUpdate || e.Location == nil || e.Location.Coordinates == nil {
		return Position{}, false
	}
	return Position{
		TripID:      e.TripRouteID,
		UnitID:      unitID,
		Coordinates: *e.Location.Coordinates,
		Address:     e.Location.Address,
		SpeedKmh:    number(e.Metadata, speedKey),
		AccuracyM:   number(e.Metadata, accuracyKey),
		ReportedBy:  e.PerformedBy,
		RecordedAt:  e.Timestamp,
	}, true
}

func number(md types.Metadata, key string) float64 {
	switch v := md[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

const (
	DefaultBreadcrumbs = 100
	MaxBreadcrumbs     = 1000
)

var (
	ErrNoPosition       = types.NotFound("No location found for this trip")
	ErrNoActiveTrip     = types.NotFound("No active trip for this unit")
	ErrNoUnitPosition   = types.NotFound("No location found for this unit")
	ErrLiveDisabled     = types.InvalidState("Live positions are not available")
	ErrCoordinatesRange = types.Validation("latitude must be between -90 and 90 and longitude between -180 and 180")
)
