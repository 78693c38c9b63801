// README: Unit (vehicle) aggregate.
package unit

import (
	"time"

	"truckmatch/internal/types"
)

type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"
	StatusAssigned    Status = "assigned"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusMaintenance, StatusAssigned:
		return true
	}
	return false
}

type Type string

const (
	TypeTruck   Type = "truck"
	TypeTrailer Type = "trailer"
	TypeVan     Type = "van"
	TypePickup  Type = "pickup"
)

func (t Type) Valid() bool {
	switch t {
	case TypeTruck, TypeTrailer, TypeVan, TypePickup:
		return true
	}
	return false
}

type CapacityUnit string

const (
	CapacityTons        CapacityUnit = "tons"
	CapacityKg          CapacityUnit = "kg"
	CapacityCubicMeters CapacityUnit = "m3"
)

func (c CapacityUnit) Valid() bool {
	return c == CapacityTons || c == CapacityKg || c == CapacityCubicMeters
}

type Unit struct {
	ID           types.ID     `json:"id"`
	PlateNumber  string       `json:"plate_number"`
	Type         Type         `json:"type"`
	Capacity     float64      `json:"capacity"`
	CapacityUnit CapacityUnit `json:"capacity_unit"`
	Status       Status       `json:"status"`
	DriverID     *types.ID    `json:"driver_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

var (
	ErrNotFound   = types.NotFound("Unit not found")
	ErrNotActive  = types.InvalidState("Unit is not active")
	ErrPlateTaken = types.Conflict("Unit plate number already registered")

	ErrDriverNotActive     = types.InvalidState("Driver must be active to be assigned")
	ErrAlreadyAssigned     = types.InvalidState("Unit is already assigned to another driver")
	ErrNoDriver            = types.InvalidState("Unit has no driver assigned")
	ErrHasActiveAssignment = types.InvalidState("Cannot unassign driver with active trip assignments")
)
