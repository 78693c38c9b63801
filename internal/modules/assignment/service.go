// README: Assignment service; create, revalidate, update and delete run in one transaction with their order and unit cascades.
package assignment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"truckmatch/internal/clock"
	"truckmatch/internal/modules/driver"
	"truckmatch/internal/modules/order"
	"truckmatch/internal/modules/unit"
	"truckmatch/internal/types"
)

type Service struct {
	repo      Repository
	validator *Validator
	clock     clock.Clock
	log       *slog.Logger
}

func NewService(repo Repository, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{repo: repo, validator: NewValidator(clk), clock: clk, log: log}
}

// cascade is what entering an assignment status does to the linked order and unit. Empty means unchanged.
type cascade struct {
	order order.Status
	unit  unit.Status
}

var cascades = map[Status]cascade{
	StatusStarted:   {order: order.StatusInProgress},
	StatusCompleted: {order: order.StatusCompleted, unit: unit.StatusActive},
	StatusCancelled: {order: order.StatusPending, unit: unit.StatusActive},
}

type CreateCommand struct {
	OrderID  types.ID
	DriverID types.ID
	UnitID   types.ID
	Notes    string
}

// UpdateCommand changes status and/or notes. Nil fields are left unchanged.
type UpdateCommand struct {
	ID     types.ID
	Status *Status
	Notes  *string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Assignment, error) {
	var a *Assignment
	err := s.repo.InTx(ctx, func(tx Tx) error {
		if err := lockPair(ctx, tx, cmd.DriverID, cmd.UnitID); err != nil {
			return err
		}
		o, err := tx.LockOrder(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusPending {
			return ErrOrderNotAvailable
		}
		taken, err := tx.OrderHasAssignment(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if taken {
			return ErrOrderHasAssignment
		}

		res, err := s.validator.Validate(ctx, tx, cmd.DriverID, cmd.UnitID, "")
		if err != nil {
			return err
		}
		if len(res.Errors) > 0 {
			return &types.ValidationErrors{Msg: ValidationFailedMsg, Problems: res.Errors}
		}

		now := s.clock.Now()
		a = &Assignment{
			ID:                types.NewID(),
			OrderID:           cmd.OrderID,
			DriverID:          cmd.DriverID,
			UnitID:            cmd.UnitID,
			Status:            statusFor(res),
			ValidationResults: res,
			Notes:             cmd.Notes,
			AssignedAt:        now,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.InsertAssignment(ctx, a); err != nil {
			return err
		}
		if err := tx.SetUnitStatus(ctx, cmd.UnitID, unit.StatusAssigned, now); err != nil {
			return err
		}
		return tx.SetOrderStatus(ctx, cmd.OrderID, order.StatusAssigned, now)
	})
	if err != nil {
		s.log.Debug("assignment create rejected", "order_id", cmd.OrderID, "driver_id", cmd.DriverID,
			"unit_id", cmd.UnitID, "error", err)
		return nil, err
	}
	s.log.Info("assignment created", "assignment_id", a.ID, "order_id", a.OrderID, "status", a.Status)
	return a, nil
}

// Revalidate re-runs the eligibility check and stores the new snapshot. Pending and ready
// assignments take the derived status; started and finished ones keep theirs.
func (s *Service) Revalidate(ctx context.Context, id types.ID) (*Assignment, error) {
	var a *Assignment
	err := s.repo.InTx(ctx, func(tx Tx) error {
		var err error
		if a, err = tx.LockAssignment(ctx, id); err != nil {
			return err
		}
		if err := lockPair(ctx, tx, a.DriverID, a.UnitID); err != nil {
			return err
		}
		res, err := s.validator.Validate(ctx, tx, a.DriverID, a.UnitID, a.ID)
		if err != nil {
			return err
		}
		a.ValidationResults = res
		if a.Status == StatusPending || a.Status == StatusReady {
			a.Status = statusFor(res)
		}
		a.UpdatedAt = s.clock.Now()
		return tx.SaveAssignment(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("assignment revalidated", "assignment_id", a.ID, "status", a.Status,
		"problems", len(a.ValidationResults.Errors))
	return a, nil
}

func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (*Assignment, error) {
	if cmd.Status != nil && !cmd.Status.Valid() {
		return nil, types.Validation("invalid assignment status")
	}

	var (
		a    *Assignment
		from Status
	)
	err := s.repo.InTx(ctx, func(tx Tx) error {
		var err error
		if a, err = tx.LockAssignment(ctx, cmd.ID); err != nil {
			return err
		}
		from = a.Status
		changed := false
		now := s.clock.Now()

		if cmd.Status != nil && *cmd.Status != a.Status {
			if err := s.transition(ctx, tx, a, *cmd.Status, now); err != nil {
				return err
			}
			changed = true
		}
		if cmd.Notes != nil && *cmd.Notes != a.Notes {
			a.Notes = *cmd.Notes
			changed = true
		}
		if !changed {
			return nil
		}
		a.UpdatedAt = now
		return tx.SaveAssignment(ctx, a)
	})
	if err != nil {
		s.log.Debug("assignment update rejected", "assignment_id", cmd.ID, "error", err)
		return nil, err
	}
	if from != a.Status {
		s.log.Info("assignment status changed", "assignment_id", a.ID, "from", from, "to", a.Status)
	}
	return a, nil
}

// transition moves a to `to`, applying timestamps and the order and unit cascade.
func (s *Service) transition(ctx context.Context, tx Tx, a *Assignment, to Status, now time.Time) error {
	switch {
	case to == StatusStarted && a.Status != StatusReady:
		return ErrNotReady
	case to == StatusCompleted && a.Status != StatusStarted:
		return ErrNotStarted
	case !CanTransition(a.Status, to):
		return transitionError(a.Status, to)
	}

	if to == StatusReady {
		if err := lockPair(ctx, tx, a.DriverID, a.UnitID); err != nil {
			return err
		}
		res, err := s.validator.Validate(ctx, tx, a.DriverID, a.UnitID, a.ID)
		if err != nil {
			return err
		}
		if !res.Ready() {
			return &types.ValidationErrors{Msg: ValidationFailedMsg, Problems: res.Errors}
		}
		a.ValidationResults = res
	}

	switch to {
	case StatusStarted:
		stamp(&a.StartedAt, now)
	case StatusCompleted:
		stamp(&a.CompletedAt, now)
	}
	a.Status = to

	c := cascades[to]
	if c.unit != "" {
		if err := tx.SetUnitStatus(ctx, a.UnitID, c.unit, now); err != nil {
			return err
		}
	}
	if c.order != "" {
		if err := tx.SetOrderStatus(ctx, a.OrderID, c.order, now); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an assignment that has not started and releases its order and unit.
func (s *Service) Delete(ctx context.Context, id types.ID) error {
	err := s.repo.InTx(ctx, func(tx Tx) error {
		a, err := tx.LockAssignment(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == StatusStarted {
			return ErrStartedUndeletable
		}
		now := s.clock.Now()
		if err := tx.SetUnitStatus(ctx, a.UnitID, unit.StatusActive, now); err != nil {
			return err
		}
		if err := tx.SetOrderStatus(ctx, a.OrderID, order.StatusPending, now); err != nil {
			return err
		}
		return tx.DeleteAssignment(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("assignment deleted", "assignment_id", id)
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Assignment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Assignment, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, types.Validation("invalid assignment status")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}
	return s.repo.List(ctx, f)
}

// RunRevalidationTicker revalidates pending assignments every interval until ctx ends.
func (s *Service) RunRevalidationTicker(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.revalidatePending(ctx)
		}
	}
}

func (s *Service) revalidatePending(ctx context.Context) int {
	ids, err := s.repo.IDsByStatus(ctx, StatusPending)
	if err != nil {
		s.log.Warn("list pending assignments", "error", err)
		return 0
	}
	promoted := 0
	for _, id := range ids {
		a, err := s.Revalidate(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				s.log.Warn("revalidate assignment", "assignment_id", id, "error", err)
			}
			continue
		}
		if a.Status == StatusReady {
			promoted++
		}
	}
	if promoted > 0 {
		s.log.Info("pending assignments promoted", "count", promoted, "checked", len(ids))
	}
	return promoted
}

func statusFor(res Result) Status {
	if res.Ready() {
		return StatusReady
	}
	return StatusPending
}

// lockPair takes the driver and unit row locks ahead of any order lock. Missing rows are
// left for the validator to report.
func lockPair(ctx context.Context, tx Tx, driverID, unitID types.ID) error {
	if _, err := tx.LockDriver(ctx, driverID); err != nil && !errors.Is(err, driver.ErrNotFound) {
		return err
	}
	if _, err := tx.LockUnit(ctx, unitID); err != nil && !errors.Is(err, unit.ErrNotFound) {
		return err
	}
	return nil
}

func stamp(field **time.Time, now time.Time) {
	v := now
	*field = &v
}

func transitionError(from, to Status) error {
	allowed := AllowedTransitions[from]
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return &types.TransitionError{From: string(from), To: string(to), Allowed: names}
}
