// README: Order service; creates numbered shipment requests. Later status changes are cascaded by trips and assignments.
package order

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"truckmatch/internal/clock"
	"truckmatch/internal/infra"
	"truckmatch/internal/types"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, int, error)
	CancelPending(ctx context.Context, id types.ID, at time.Time) (bool, error)
}

type Service struct {
	repo    Repository
	numbers infra.Sequencer
	clock   clock.Clock
	log     *slog.Logger
}

func NewService(repo Repository, numbers infra.Sequencer, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{repo: repo, numbers: numbers, clock: clk, log: log}
}

type CreateCommand struct {
	Origin          types.Location
	Destination     types.Location
	CargoWeight     float64
	CargoWeightUnit WeightUnit
	ClientID        *types.ID
	Rate            *types.Money
	Notes           string
}

const maxNumberAttempts = 3

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if err := cmd.Origin.Validate("origin"); err != nil {
		return nil, err
	}
	if err := cmd.Destination.Validate("destination"); err != nil {
		return nil, err
	}
	if cmd.CargoWeightUnit == "" {
		cmd.CargoWeightUnit = WeightTons
	}
	if !cmd.CargoWeightUnit.Valid() {
		return nil, types.Validation("cargo_weight_unit must be one of tons, kg, lbs")
	}
	if cmd.Rate != nil {
		r := cmd.Rate.WithDefaultCurrency()
		cmd.Rate = &r
	}

	now := s.clock.Now()
	o := &Order{
		ID:              types.NewID(),
		Origin:          cmd.Origin,
		Destination:     cmd.Destination,
		CargoWeight:     cmd.CargoWeight,
		CargoWeightUnit: cmd.CargoWeightUnit,
		Status:          StatusPending,
		ClientID:        cmd.ClientID,
		Rate:            cmd.Rate,
		Notes:           cmd.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Random suffixes may collide; retry a few times on a taken number.
	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		if o.OrderNumber, err = s.numbers.Next(ctx, NumberPrefix, now); err != nil {
			return nil, err
		}
		if err = s.repo.Create(ctx, o); !errors.Is(err, ErrNumberTaken) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("order created", "order_id", o.ID, "order_number", o.OrderNumber)
	return o, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, types.Validation("invalid order status")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}
	return s.repo.List(ctx, f)
}

// Cancel withdraws an order that no trip or assignment has picked up yet.
func (s *Service) Cancel(ctx context.Context, id types.ID) (*Order, error) {
	ok, err := s.repo.CancelPending(ctx, id, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.repo.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotPending
	}
	s.log.Info("order cancelled", "order_id", id)
	return s.repo.Get(ctx, id)
}
