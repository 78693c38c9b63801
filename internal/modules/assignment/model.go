// README: Assignment aggregate; pairs one order with a driver and unit after an eligibility check.
package assignment

import (
	"time"

	"truckmatch/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var AllStatuses = []Status{StatusPending, StatusReady, StatusStarted, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal statuses no longer move through the lifecycle. Completed can still be cancelled.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ActiveStatuses hold their driver and unit exclusively.
var ActiveStatuses = []Status{StatusReady, StatusStarted}

// AllowedTransitions lists the moves an update may make. Cancelling is open from every other
// status and always releases the order and unit.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusReady, StatusCancelled},
	StatusReady:     {StatusStarted, StatusPending, StatusCancelled},
	StatusStarted:   {StatusCompleted, StatusCancelled},
	StatusCompleted: {StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, next := range AllowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Assignment struct {
	ID                types.ID   `json:"id"`
	OrderID           types.ID   `json:"order_id"`
	DriverID          types.ID   `json:"driver_id"`
	UnitID            types.ID   `json:"unit_id"`
	Status            Status     `json:"status"`
	ValidationResults Result     `json:"validation_results"`
	Notes             string     `json:"notes,omitempty"`
	AssignedAt        time.Time  `json:"assigned_at"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

var (
	ErrNotFound           = types.NotFound("Assignment not found")
	ErrOrderNotAvailable  = types.InvalidState("Order is not available for assignment")
	ErrOrderHasAssignment = types.Conflict("Order already has an assignment")
	ErrNotReady           = types.InvalidState("Assignment must be ready before starting")
	ErrNotStarted         = types.InvalidState("Assignment must be started before completing")
	ErrStartedUndeletable = types.InvalidState("Cannot delete started assignments")
	ErrDriverAssigned     = types.Conflict("Driver is already assigned to an active trip")
	ErrUnitAssigned       = types.Conflict("Unit is already assigned to an active trip")
)

// ValidationFailedMsg heads the error returned when eligibility checks fail.
const ValidationFailedMsg = "Assignment validation failed"
