// README: Assignment store backed by PostgreSQL; the validation snapshot is kept as JSONB.
package assignment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"truckmatch/internal/infra"
	"truckmatch/internal/modules/document"
	"truckmatch/internal/modules/driver"
	"truckmatch/internal/modules/order"
	"truckmatch/internal/modules/unit"
	"truckmatch/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const columns = `
	id, order_id, driver_id, unit_id, status, validation_results, notes,
	assigned_at, started_at, completed_at, created_at, updated_at`

func (s *Store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return infra.InTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Assignment, error) {
	return scanAssignment(s.db.QueryRow(ctx, `SELECT `+columns+` FROM assignments WHERE id = $1`, string(id)))
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]Assignment, int, error) {
	var (
		conds []string
		args  []any
	)
	eq := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	eq("status", string(f.Status))
	eq("driver_id", string(f.DriverID))
	eq("unit_id", string(f.UnitID))
	eq("order_id", string(f.OrderID))
	clause := ""
	if len(conds) > 0 {
		clause = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM assignments`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM assignments%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		columns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

func (s *Store) IDsByStatus(ctx context.Context, status Status) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM assignments WHERE status = $1 ORDER BY created_at, id`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

// Driver and Unit read with FOR UPDATE so the validator sees rows the transaction holds.
func (t *pgTx) Driver(ctx context.Context, id types.ID) (*driver.Driver, error) {
	return driver.GetForUpdate(ctx, t.tx, id)
}

func (t *pgTx) Unit(ctx context.Context, id types.ID) (*unit.Unit, error) {
	return unit.GetForUpdate(ctx, t.tx, id)
}

func (t *pgTx) Documents(ctx context.Context, owner document.Owner) ([]document.Document, error) {
	return document.ListByOwner(ctx, t.tx, owner)
}

func (t *pgTx) HasActive(ctx context.Context, q ActiveQuery) (bool, error) {
	column, value := "driver_id", string(q.DriverID)
	if q.UnitID != "" {
		column, value = "unit_id", string(q.UnitID)
	}
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM assignments
			WHERE `+column+` = $1 AND status IN ('ready', 'started') AND id <> $2
		)`, value, string(q.ExcludeID)).Scan(&exists)
	return exists, err
}

func (t *pgTx) LockAssignment(ctx context.Context, id types.ID) (*Assignment, error) {
	return scanAssignment(t.tx.QueryRow(ctx, `SELECT `+columns+` FROM assignments WHERE id = $1 FOR UPDATE`, string(id)))
}

func (t *pgTx) LockDriver(ctx context.Context, id types.ID) (*driver.Driver, error) {
	return driver.GetForUpdate(ctx, t.tx, id)
}

func (t *pgTx) LockUnit(ctx context.Context, id types.ID) (*unit.Unit, error) {
	return unit.GetForUpdate(ctx, t.tx, id)
}

func (t *pgTx) LockOrder(ctx context.Context, id types.ID) (*order.Order, error) {
	return order.GetForUpdate(ctx, t.tx, id)
}

func (t *pgTx) OrderHasAssignment(ctx context.Context, orderID types.ID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM assignments WHERE order_id = $1)`, string(orderID)).Scan(&exists)
	return exists, err
}

func (t *pgTx) InsertAssignment(ctx context.Context, a *Assignment) error {
	results, err := json.Marshal(a.ValidationResults)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO assignments (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(a.ID), string(a.OrderID), string(a.DriverID), string(a.UnitID), string(a.Status),
		results, a.Notes, a.AssignedAt, a.StartedAt, a.CompletedAt, a.CreatedAt, a.UpdatedAt,
	)
	return mapConstraint(err)
}

func (t *pgTx) SaveAssignment(ctx context.Context, a *Assignment) error {
	results, err := json.Marshal(a.ValidationResults)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE assignments SET
			status = $2, validation_results = $3, notes = $4,
			started_at = $5, completed_at = $6, updated_at = $7
		WHERE id = $1`,
		string(a.ID), string(a.Status), results, a.Notes, a.StartedAt, a.CompletedAt, a.UpdatedAt,
	)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteAssignment(ctx context.Context, id types.ID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) SetOrderStatus(ctx context.Context, id types.ID, status order.Status, at time.Time) error {
	return order.SetStatus(ctx, t.tx, id, status, at)
}

func (t *pgTx) SetUnitStatus(ctx context.Context, id types.ID, status unit.Status, at time.Time) error {
	return unit.SetStatus(ctx, t.tx, id, status, at)
}

func mapConstraint(err error) error {
	switch {
	case err == nil:
		return nil
	case infra.IsUniqueViolation(err, "assignments_order_id_key"):
		return ErrOrderHasAssignment
	case infra.IsUniqueViolation(err, "assignments_active_driver_key"):
		return ErrDriverAssigned
	case infra.IsUniqueViolation(err, "assignments_active_unit_key"):
		return ErrUnitAssigned
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (*Assignment, error) {
	var a Assignment
	var results []byte
	err := row.Scan(&a.ID, &a.OrderID, &a.DriverID, &a.UnitID, &a.Status, &results, &a.Notes,
		&a.AssignedAt, &a.StartedAt, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt)
	if infra.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(results, &a.ValidationResults); err != nil {
		return nil, fmt.Errorf("decode validation results: %w", err)
	}
	return &a, nil
}
