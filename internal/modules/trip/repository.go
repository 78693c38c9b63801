// README: Persistence contract for trip routes. The Postgres Store implements it; tests use an in-memory fake.
package trip

import (
	"context"
	"time"

	"truckmatch/internal/modules/driver"
	"truckmatch/internal/modules/order"
	"truckmatch/internal/modules/unit"
	"truckmatch/internal/types"
)

// HolderQuery matches trips naming a driver, unit or order in one of Statuses.
// Empty id fields are ignored; ExcludeID drops one trip from the match.
type HolderQuery struct {
	DriverID  types.ID
	UnitID    types.ID
	OrderID   types.ID
	Statuses  []Status
	ExcludeID types.ID
}

type HolderReader interface {
	HasTrip(ctx context.Context, q HolderQuery) (bool, error)
}

type EventWriter interface {
	InsertEvent(ctx context.Context, e *Event) error
}

// Tx is one atomic unit of work. Lock methods take row locks held until commit or rollback,
// always acquired in the order trip, driver, unit, order.
type Tx interface {
	HolderReader
	EventWriter

	LockTrip(ctx context.Context, id types.ID) (*TripRoute, error)
	LockDriver(ctx context.Context, id types.ID) (*driver.Driver, error)
	LockUnit(ctx context.Context, id types.ID) (*unit.Unit, error)
	LockOrder(ctx context.Context, id types.ID) (*order.Order, error)

	InsertTrip(ctx context.Context, t *TripRoute) error
	SaveTrip(ctx context.Context, t *TripRoute) error
	DeleteTrip(ctx context.Context, id types.ID) error
	SetOrderStatus(ctx context.Context, id types.ID, status order.Status, at time.Time) error
}

type ListFilter struct {
	Status      Status
	DriverID    types.ID
	UnitID      types.ID
	OrderID     types.ID
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	Limit       int
}

type StatsFilter struct {
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	DriverID    types.ID
}

// Totals are the raw aggregates behind Statistics.
type Totals struct {
	Counts              map[Status]int
	CompletedDistanceKm float64
	CompletedHoursSum   float64
	CompletedHoursCount int
}

type Repository interface {
	// InTx commits when fn returns nil and rolls back every write otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Get(ctx context.Context, id types.ID) (*TripRoute, error)
	List(ctx context.Context, f ListFilter) ([]TripRoute, int, error)
	// History returns events oldest first, in append order for equal timestamps.
	History(ctx context.Context, tripID types.ID) ([]Event, error)
	Totals(ctx context.Context, f StatsFilter) (Totals, error)
}
