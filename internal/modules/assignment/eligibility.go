// README: Eligibility validator; accumulates every driver, unit and exclusivity problem in one pass.
package assignment

import (
	"context"
	"errors"

	"truckmatch/internal/clock"
	"truckmatch/internal/modules/document"
	"truckmatch/internal/modules/driver"
	"truckmatch/internal/modules/unit"
	"truckmatch/internal/types"
)

// Result is the snapshot stored on the assignment.
type Result struct {
	DriverValid     bool                `json:"driver_valid"`
	UnitValid       bool                `json:"unit_valid"`
	DriverDocuments []document.Document `json:"driver_documents"`
	UnitDocuments   []document.Document `json:"unit_documents"`
	Errors          []string            `json:"errors"`
}

// Ready is true when nothing failed and both sides hold valid documents.
func (r Result) Ready() bool {
	return len(r.Errors) == 0 && r.DriverValid && r.UnitValid
}

// ActiveQuery matches assignments in ActiveStatuses for one driver or unit.
type ActiveQuery struct {
	DriverID  types.ID
	UnitID    types.ID
	ExcludeID types.ID
}

// Source is the read side the validator needs. Driver and Unit return their module's ErrNotFound when absent.
type Source interface {
	Driver(ctx context.Context, id types.ID) (*driver.Driver, error)
	Unit(ctx context.Context, id types.ID) (*unit.Unit, error)
	Documents(ctx context.Context, owner document.Owner) ([]document.Document, error)
	HasActive(ctx context.Context, q ActiveQuery) (bool, error)
}

type Validator struct {
	clock clock.Clock
}

func NewValidator(clk clock.Clock) *Validator {
	return &Validator{clock: clk}
}

// Validate checks the pair. excludeID skips the assignment being revalidated in the exclusivity checks.
// Only store failures are returned as errors; eligibility problems land in Result.Errors.
func (v *Validator) Validate(ctx context.Context, src Source, driverID, unitID, excludeID types.ID) (Result, error) {
	now := v.clock.Now()
	res := Result{
		DriverDocuments: []document.Document{},
		UnitDocuments:   []document.Document{},
		Errors:          []string{},
	}

	d, err := src.Driver(ctx, driverID)
	if errors.Is(err, driver.ErrNotFound) {
		res.Errors = append(res.Errors, "Driver not found")
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}
	if d.Status != driver.StatusActive {
		res.Errors = append(res.Errors, "Driver must be active")
	}
	if d.LicenseExpired(now) {
		res.Errors = append(res.Errors, "Driver license has expired")
	}
	docs, err := src.Documents(ctx, document.DriverOwner(driverID))
	if err != nil {
		return Result{}, err
	}
	res.DriverDocuments = document.FilterValid(docs, now)
	if len(res.DriverDocuments) == 0 {
		res.Errors = append(res.Errors, "Driver has no valid documents")
	} else {
		res.DriverValid = true
	}

	u, err := src.Unit(ctx, unitID)
	if errors.Is(err, unit.ErrNotFound) {
		res.Errors = append(res.Errors, "Unit not found")
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}
	if u.Status != unit.StatusActive && u.Status != unit.StatusAssigned {
		res.Errors = append(res.Errors, "Unit must be active or assigned")
	}
	if docs, err = src.Documents(ctx, document.UnitOwner(unitID)); err != nil {
		return Result{}, err
	}
	res.UnitDocuments = document.FilterValid(docs, now)
	if len(res.UnitDocuments) == 0 {
		res.Errors = append(res.Errors, "Unit has no valid documents")
	} else {
		res.UnitValid = true
	}

	busy, err := src.HasActive(ctx, ActiveQuery{DriverID: driverID, ExcludeID: excludeID})
	if err != nil {
		return Result{}, err
	}
	if busy {
		res.Errors = append(res.Errors, "Driver is already assigned to an active trip")
	}
	if busy, err = src.HasActive(ctx, ActiveQuery{UnitID: unitID, ExcludeID: excludeID}); err != nil {
		return Result{}, err
	}
	if busy {
		res.Errors = append(res.Errors, "Unit is already assigned to an active trip")
	}
	return res, nil
}
