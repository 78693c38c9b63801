// README: Order aggregate; status follows the linked trip route and assignment lifecycles.
package order

import (
	"time"

	"truckmatch/internal/types"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type WeightUnit string

const (
	WeightTons WeightUnit = "tons"
	WeightKg   WeightUnit = "kg"
	WeightLbs  WeightUnit = "lbs"
)

func (w WeightUnit) Valid() bool {
	return w == WeightTons || w == WeightKg || w == WeightLbs
}

type Order struct {
	ID              types.ID       `json:"id"`
	OrderNumber     string         `json:"order_number"`
	Origin          types.Location `json:"origin"`
	Destination     types.Location `json:"destination"`
	CargoWeight     float64        `json:"cargo_weight"`
	CargoWeightUnit WeightUnit     `json:"cargo_weight_unit"`
	Status          Status         `json:"status"`
	ClientID        *types.ID      `json:"client_id,omitempty"`
	Rate            *types.Money   `json:"rate,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NumberPrefix starts every generated order number.
const NumberPrefix = "ORD"

var (
	ErrNotFound    = types.NotFound("Order not found")
	ErrNumberTaken = types.Conflict("Order number already exists")
	ErrNotPending  = types.InvalidState("Only pending orders can be cancelled")
)
