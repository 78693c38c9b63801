// README: Unit store backed by PostgreSQL; row-lock and status helpers run on a caller's transaction.
package unit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"truckmatch/internal/infra"
	"truckmatch/internal/modules/driver"
	"truckmatch/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectColumns = `
	SELECT id, plate_number, type, capacity, capacity_unit, status, driver_id, created_at, updated_at
	FROM units`

func (s *Store) Create(ctx context.Context, u *Unit) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO units (
			id, plate_number, type, capacity, capacity_unit, status, driver_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(u.ID), u.PlateNumber, string(u.Type), u.Capacity, string(u.CapacityUnit),
		string(u.Status), toStringPtr(u.DriverID), u.CreatedAt, u.UpdatedAt,
	)
	if infra.IsUniqueViolation(err, "units_plate_number_key") {
		return ErrPlateTaken
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Unit, error) {
	return scanOne(s.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, string(id)))
}

func (s *Store) SetStatus(ctx context.Context, id types.ID, status Status, at time.Time) error {
	return SetStatus(ctx, s.db, id, status, at)
}

func (s *Store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return infra.InTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) LockDriver(ctx context.Context, id types.ID) (*driver.Driver, error) {
	return driver.GetForUpdate(ctx, t.tx, id)
}

func (t pgTx) LockUnit(ctx context.Context, id types.ID) (*Unit, error) {
	return GetForUpdate(ctx, t.tx, id)
}

func (t pgTx) HasActiveAssignment(ctx context.Context, unitID types.ID) (bool, error) {
	var busy bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM assignments WHERE unit_id = $1 AND status IN ('ready', 'started'))`,
		string(unitID)).Scan(&busy)
	return busy, err
}

func (t pgTx) SetDriver(ctx context.Context, id types.ID, driverID *types.ID, status Status, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE units SET driver_id = $1, status = $2, updated_at = $3 WHERE id = $4`,
		toStringPtr(driverID), string(status), at, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetForUpdate loads and row-locks the unit on q until the transaction ends.
func GetForUpdate(ctx context.Context, q infra.Querier, id types.ID) (*Unit, error) {
	return scanOne(q.QueryRow(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, string(id)))
}

func SetStatus(ctx context.Context, q infra.Querier, id types.ID, status Status, at time.Time) error {
	tag, err := q.Exec(ctx, `UPDATE units SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), at, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row rowScanner) (*Unit, error) {
	var u Unit
	var driverID *string
	err := row.Scan(&u.ID, &u.PlateNumber, &u.Type, &u.Capacity, &u.CapacityUnit, &u.Status,
		&driverID, &u.CreatedAt, &u.UpdatedAt)
	if infra.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if driverID != nil {
		d := types.ID(*driverID)
		u.DriverID = &d
	}
	return &u, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
