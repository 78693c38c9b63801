// README: Unit registration and status changes.
package unit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"truckmatch/internal/clock"
	"truckmatch/internal/modules/driver"
	"truckmatch/internal/types"
)

// Tx backs driver assignment. Locks are taken driver first, then unit.
type Tx interface {
	LockDriver(ctx context.Context, id types.ID) (*driver.Driver, error)
	LockUnit(ctx context.Context, id types.ID) (*Unit, error)
	HasActiveAssignment(ctx context.Context, unitID types.ID) (bool, error)
	SetDriver(ctx context.Context, id types.ID, driverID *types.ID, status Status, at time.Time) error
}

type Repository interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Create(ctx context.Context, u *Unit) error
	Get(ctx context.Context, id types.ID) (*Unit, error)
	SetStatus(ctx context.Context, id types.ID, status Status, at time.Time) error
}

type Service struct {
	repo  Repository
	clock clock.Clock
	log   *slog.Logger
}

func NewService(repo Repository, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{repo: repo, clock: clk, log: log}
}

type RegisterCommand struct {
	PlateNumber  string
	Type         Type
	Capacity     float64
	CapacityUnit CapacityUnit
	Status       Status
	DriverID     *types.ID
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Unit, error) {
	cmd.PlateNumber = strings.ToUpper(strings.TrimSpace(cmd.PlateNumber))
	if !cmd.Type.Valid() {
		return nil, types.Validation("type must be one of truck, trailer, van, pickup")
	}
	if cmd.CapacityUnit == "" {
		cmd.CapacityUnit = CapacityTons
	}
	if !cmd.CapacityUnit.Valid() {
		return nil, types.Validation("capacity_unit must be one of tons, kg, m3")
	}
	if cmd.Status == "" {
		cmd.Status = StatusActive
	}
	if !cmd.Status.Valid() {
		return nil, types.Validation("invalid unit status")
	}

	now := s.clock.Now()
	u := &Unit{
		ID:           types.NewID(),
		PlateNumber:  cmd.PlateNumber,
		Type:         cmd.Type,
		Capacity:     cmd.Capacity,
		CapacityUnit: cmd.CapacityUnit,
		Status:       cmd.Status,
		DriverID:     cmd.DriverID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("unit registered", "unit_id", u.ID, "plate", u.PlateNumber)
	return u, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Unit, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) SetStatus(ctx context.Context, id types.ID, status Status) (*Unit, error) {
	if !status.Valid() {
		return nil, types.Validation("invalid unit status")
	}
	if err := s.repo.SetStatus(ctx, id, status, s.clock.Now()); err != nil {
		return nil, err
	}
	s.log.Info("unit status changed", "unit_id", id, "status", status)
	return s.repo.Get(ctx, id)
}

// AssignDriver binds an active driver to the unit and marks the unit assigned.
func (s *Service) AssignDriver(ctx context.Context, id, driverID types.ID) (*Unit, error) {
	var out *Unit
	err := s.repo.InTx(ctx, func(tx Tx) error {
		d, err := tx.LockDriver(ctx, driverID)
		if err != nil {
			return err
		}
		u, err := tx.LockUnit(ctx, id)
		if err != nil {
			return err
		}
		if d.Status != driver.StatusActive {
			return ErrDriverNotActive
		}
		if u.Status == StatusAssigned {
			return ErrAlreadyAssigned
		}
		now := s.clock.Now()
		if err := tx.SetDriver(ctx, id, &driverID, StatusAssigned, now); err != nil {
			return err
		}
		u.DriverID, u.Status, u.UpdatedAt = &driverID, StatusAssigned, now
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("driver assigned to unit", "unit_id", id, "driver_id", driverID)
	return out, nil
}

// UnassignDriver clears the unit's driver and returns it to active. Units on a ready or started
// assignment keep their driver.
func (s *Service) UnassignDriver(ctx context.Context, id types.ID) (*Unit, error) {
	var out *Unit
	err := s.repo.InTx(ctx, func(tx Tx) error {
		u, err := tx.LockUnit(ctx, id)
		if err != nil {
			return err
		}
		if u.DriverID == nil {
			return ErrNoDriver
		}
		busy, err := tx.HasActiveAssignment(ctx, id)
		if err != nil {
			return err
		}
		if busy {
			return ErrHasActiveAssignment
		}
		now := s.clock.Now()
		if err := tx.SetDriver(ctx, id, nil, StatusActive, now); err != nil {
			return err
		}
		u.DriverID, u.Status, u.UpdatedAt = nil, StatusActive, now
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("driver unassigned from unit", "unit_id", id)
	return out, nil
}
