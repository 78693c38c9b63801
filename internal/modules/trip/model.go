// README: Trip route aggregate, its audit events and the status graph as code.
package trip

import (
	"time"

	"truckmatch/internal/types"
)

type Status string

const (
	StatusCreated              Status = "created"
	StatusAssigned             Status = "assigned"
	StatusInProgress           Status = "in_progress"
	StatusArrivedAtDestination Status = "arrived_at_destination"
	StatusCompleted            Status = "completed"
	StatusCancelled            Status = "cancelled"
)

// AllStatuses in lifecycle order.
var AllStatuses = []Status{
	StatusCreated, StatusAssigned, StatusInProgress,
	StatusArrivedAtDestination, StatusCompleted, StatusCancelled,
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// AllowedTransitions represents the trip state flow as code. Terminal states have no entry.
var AllowedTransitions = map[Status][]Status{
	StatusCreated:              {StatusAssigned, StatusCancelled},
	StatusAssigned:             {StatusInProgress, StatusCancelled},
	StatusInProgress:           {StatusArrivedAtDestination, StatusCancelled},
	StatusArrivedAtDestination: {StatusCompleted, StatusInProgress, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedFrom returns the statuses reachable from s.
func AllowedFrom(s Status) []Status {
	next := AllowedTransitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// BusyStatuses hold a driver and unit exclusively.
var BusyStatuses = []Status{StatusAssigned, StatusInProgress, StatusArrivedAtDestination}

// OpenStatuses are every non-terminal status. An order has at most one open trip, and new
// trips or reassignments never take a driver or unit that an open trip already names.
var OpenStatuses = []Status{StatusCreated, StatusAssigned, StatusInProgress, StatusArrivedAtDestination}

// Deletable statuses carry nothing in flight.
func (s Status) Deletable() bool {
	return s == StatusCreated || s == StatusCancelled || s == StatusCompleted
}

type TripRoute struct {
	ID                     types.ID       `json:"id"`
	TripNumber             string         `json:"trip_number"`
	Origin                 types.Location `json:"origin"`
	Destination            types.Location `json:"destination"`
	EstimatedDistanceKm    float64        `json:"estimated_distance_km"`
	ActualDistanceKm       *float64       `json:"actual_distance_km,omitempty"`
	EstimatedDurationHours float64        `json:"estimated_duration_hours"`
	ActualDurationHours    *float64       `json:"actual_duration_hours,omitempty"`
	Status                 Status         `json:"status"`
	DriverID               types.ID       `json:"driver_id"`
	UnitID                 types.ID       `json:"unit_id"`
	OrderID                *types.ID      `json:"order_id,omitempty"`
	StartedAt              *time.Time     `json:"started_at,omitempty"`
	ArrivedAt              *time.Time     `json:"arrived_at,omitempty"`
	CompletedAt            *time.Time     `json:"completed_at,omitempty"`
	CancelledAt            *time.Time     `json:"cancelled_at,omitempty"`
	CancellationReason     *string        `json:"cancellation_reason,omitempty"`
	Notes                  string         `json:"notes,omitempty"`
	Metadata               types.Metadata `json:"metadata"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// Clone returns a deep copy so callers can diff or roll back.
func (t *TripRoute) Clone() *TripRoute {
	cp := *t
	cp.ActualDistanceKm = clonePtr(t.ActualDistanceKm)
	cp.ActualDurationHours = clonePtr(t.ActualDurationHours)
	cp.OrderID = clonePtr(t.OrderID)
	cp.StartedAt = clonePtr(t.StartedAt)
	cp.ArrivedAt = clonePtr(t.ArrivedAt)
	cp.CompletedAt = clonePtr(t.CompletedAt)
	cp.CancelledAt = clonePtr(t.CancelledAt)
	cp.CancellationReason = clonePtr(t.CancellationReason)
	cp.Origin.Coordinates = clonePtr(t.Origin.Coordinates)
	cp.Destination.Coordinates = clonePtr(t.Destination.Coordinates)
	if t.Metadata != nil {
		cp.Metadata = make(types.Metadata, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type EventType string

const (
	EventStatusChange     EventType = "status_change"
	EventLocationUpdate   EventType = "location_update"
	EventNoteAdded        EventType = "note_added"
	EventMetadataUpdated  EventType = "metadata_updated"
	EventReassignment     EventType = "reassignment"
	EventDelayReported    EventType = "delay_reported"
	EventIncidentReported EventType = "incident_reported"
)

// ReportableEvents can be appended by callers directly. The rest are written by status changes and edits.
var ReportableEvents = []EventType{EventLocationUpdate, EventNoteAdded, EventDelayReported, EventIncidentReported}

func (t EventType) Reportable() bool {
	for _, r := range ReportableEvents {
		if r == t {
			return true
		}
	}
	return false
}

// Event is an immutable audit row; it is only ever appended.
type Event struct {
	ID              types.ID        `json:"id"`
	TripRouteID     types.ID        `json:"trip_route_id"`
	Type            EventType       `json:"event_type"`
	FromStatus      *Status         `json:"from_status"`
	ToStatus        *Status         `json:"to_status"`
	Location        *types.Location `json:"location,omitempty"`
	Description     string          `json:"description"`
	Metadata        types.Metadata  `json:"metadata"`
	PerformedBy     *string         `json:"performed_by"`
	PerformedByRole string          `json:"performed_by_role"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Actor is the opaque caller identity recorded on events.
type Actor struct {
	ID   string
	Role string
}

// NumberPrefix starts every generated trip number.
const NumberPrefix = "TRIP"

const DefaultCancellationReason = "No reason provided"

var (
	ErrNotFound          = types.NotFound("Trip route not found")
	ErrOrderHasTrip      = types.Conflict("Order already has an active trip")
	ErrDriverBusy        = types.Conflict("Driver already has an active trip")
	ErrUnitBusy          = types.Conflict("Unit already assigned to another active trip")
	ErrTerminalImmutable = types.InvalidState("Cannot update completed or cancelled trips")
	ErrNotDeletable      = types.InvalidState("Cannot delete active trips")
	ErrNumberTaken       = types.Conflict("Trip number already exists")

	ErrNotReportable    = types.Validation("event_type must be one of location_update, note_added, delay_reported, incident_reported")
	ErrLocationRequired = types.Validation("location is required for location updates")
	ErrNoteRequired     = types.Validation("description is required for notes")
)
