package assignment

import (
	"context"
	"time"

	"truckmatch/internal/modules/driver"
	"truckmatch/internal/modules/order"
	"truckmatch/internal/modules/unit"
	"truckmatch/internal/types"
)

// Tx is the transactional view used by every mutating operation.
// Lock* calls take row locks and must follow assignment, driver, unit, order.
type Tx interface {
	Source

	LockAssignment(ctx context.Context, id types.ID) (*Assignment, error)
	LockDriver(ctx context.Context, id types.ID) (*driver.Driver, error)
	LockUnit(ctx context.Context, id types.ID) (*unit.Unit, error)
	LockOrder(ctx context.Context, id types.ID) (*order.Order, error)

	OrderHasAssignment(ctx context.Context, orderID types.ID) (bool, error)
	InsertAssignment(ctx context.Context, a *Assignment) error
	SaveAssignment(ctx context.Context, a *Assignment) error
	DeleteAssignment(ctx context.Context, id types.ID) error

	SetOrderStatus(ctx context.Context, id types.ID, status order.Status, at time.Time) error
	SetUnitStatus(ctx context.Context, id types.ID, status unit.Status, at time.Time) error
}

type ListFilter struct {
	Status   Status
	DriverID types.ID
	UnitID   types.ID
	OrderID  types.ID
	Page     int
	Limit    int
}

type Repository interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Get(ctx context.Context, id types.ID) (*Assignment, error)
	List(ctx context.Context, f ListFilter) ([]Assignment, int, error)
	IDsByStatus(ctx context.Context, status Status) ([]types.ID, error)
}
