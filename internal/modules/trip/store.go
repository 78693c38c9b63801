// README: Trip route store backed by PostgreSQL. Mutations run through InTx with row locks on every entity they gate on.
package trip

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"truckmatch/internal/infra"
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

const tripColumns = `
	id, trip_number, origin, destination, estimated_distance_km, actual_distance_km,
	estimated_duration_hours, actual_duration_hours, status, driver_id, unit_id, order_id,
	started_at, arrived_at, completed_at, cancelled_at, cancellation_reason, notes, metadata,
	created_at, updated_at`

func (s *Store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return infra.InTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (s *Store) Get(ctx context.Context, id types.ID) (*TripRoute, error) {
	return scanTrip(s.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trip_routes WHERE id = $1`, string(id)))
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]TripRoute, int, error) {
	var w where
	w.eq("status", string(f.Status))
	w.eq("driver_id", string(f.DriverID))
	w.eq("unit_id", string(f.UnitID))
	w.eq("order_id", string(f.OrderID))
	w.createdBetween(f.CreatedFrom, f.CreatedTo)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM trip_routes`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(w.args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM trip_routes%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		tripColumns, w.sql(), len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []TripRoute
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

func (s *Store) History(ctx context.Context, tripID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_route_id, event_type, from_status, to_status, location, description,
		       metadata, performed_by, performed_by_role, created_at
		FROM trip_route_events
		WHERE trip_route_id = $1
		ORDER BY created_at, seq`, string(tripID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var location, metadata []byte
		if err := rows.Scan(&e.ID, &e.TripRouteID, &e.Type, &e.FromStatus, &e.ToStatus, &location,
			&e.Description, &metadata, &e.PerformedBy, &e.PerformedByRole, &e.Timestamp); err != nil {
			return nil, err
		}
		if location != nil {
			e.Location = &types.Location{}
			if err := json.Unmarshal(location, e.Location); err != nil {
				return nil, fmt.Errorf("decode event location: %w", err)
			}
		}
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode event metadata: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Totals(ctx context.Context, f StatsFilter) (Totals, error) {
	var w where
	w.eq("driver_id", string(f.DriverID))
	w.createdBetween(f.CreatedFrom, f.CreatedTo)

	rows, err := s.db.Query(ctx, `
		SELECT status, COUNT(*),
		       COALESCE(SUM(actual_distance_km), 0),
		       COALESCE(SUM(actual_duration_hours), 0),
		       COUNT(actual_duration_hours)
		FROM trip_routes`+w.sql()+`
		GROUP BY status`, w.args...)
	if err != nil {
		return Totals{}, err
	}
	defer rows.Close()

	totals := Totals{Counts: map[Status]int{}}
	for rows.Next() {
		var (
			status       Status
			count, hours int
			km, hoursSum float64
		)
		if err := rows.Scan(&status, &count, &km, &hoursSum, &hours); err != nil {
			return Totals{}, err
		}
		totals.Counts[status] = count
		if status == StatusCompleted {
			totals.CompletedDistanceKm = km
			totals.CompletedHoursSum = hoursSum
			totals.CompletedHoursCount = hours
		}
	}
	return totals, rows.Err()
}

// pgTx implements Tx on one pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockTrip(ctx context.Context, id types.ID) (*TripRoute, error) {
	return scanTrip(t.tx.QueryRow(ctx, `SELECT `+tripColumns+` FROM trip_routes WHERE id = $1 FOR UPDATE`, string(id)))
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

func (t *pgTx) SetOrderStatus(ctx context.Context, id types.ID, status order.Status, at time.Time) error {
	return order.SetStatus(ctx, t.tx, id, status, at)
}

func (t *pgTx) HasTrip(ctx context.Context, q HolderQuery) (bool, error) {
	var w where
	w.eq("driver_id", string(q.DriverID))
	w.eq("unit_id", string(q.UnitID))
	w.eq("order_id", string(q.OrderID))
	if q.ExcludeID != "" {
		w.add("id <> $%d", string(q.ExcludeID))
	}
	statuses := make([]string, len(q.Statuses))
	for i, s := range q.Statuses {
		statuses[i] = string(s)
	}
	w.add("status = ANY($%d)", statuses)

	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trip_routes`+w.sql()+`)`, w.args...).Scan(&exists)
	return exists, err
}

func (t *pgTx) InsertTrip(ctx context.Context, tr *TripRoute) error {
	origin, destination, metadata, err := encodeTrip(tr)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO trip_routes (`+tripColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		string(tr.ID), tr.TripNumber, origin, destination, tr.EstimatedDistanceKm, tr.ActualDistanceKm,
		tr.EstimatedDurationHours, tr.ActualDurationHours, string(tr.Status), string(tr.DriverID),
		string(tr.UnitID), toStringPtr(tr.OrderID), tr.StartedAt, tr.ArrivedAt, tr.CompletedAt,
		tr.CancelledAt, tr.CancellationReason, tr.Notes, metadata, tr.CreatedAt, tr.UpdatedAt,
	)
	return mapConstraint(err)
}

func (t *pgTx) SaveTrip(ctx context.Context, tr *TripRoute) error {
	origin, destination, metadata, err := encodeTrip(tr)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE trip_routes SET
			origin = $2, destination = $3, estimated_distance_km = $4, actual_distance_km = $5,
			estimated_duration_hours = $6, actual_duration_hours = $7, status = $8,
			driver_id = $9, unit_id = $10, started_at = $11, arrived_at = $12, completed_at = $13,
			cancelled_at = $14, cancellation_reason = $15, notes = $16, metadata = $17, updated_at = $18
		WHERE id = $1`,
		string(tr.ID), origin, destination, tr.EstimatedDistanceKm, tr.ActualDistanceKm,
		tr.EstimatedDurationHours, tr.ActualDurationHours, string(tr.Status), string(tr.DriverID),
		string(tr.UnitID), tr.StartedAt, tr.ArrivedAt, tr.CompletedAt, tr.CancelledAt,
		tr.CancellationReason, tr.Notes, metadata, tr.UpdatedAt,
	)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteTrip(ctx context.Context, id types.ID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM trip_routes WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertEvent(ctx context.Context, e *Event) error {
	var location []byte
	if e.Location != nil {
		var err error
		if location, err = json.Marshal(e.Location); err != nil {
			return err
		}
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO trip_route_events (
			id, trip_route_id, event_type, from_status, to_status, location, description,
			metadata, performed_by, performed_by_role, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(e.ID), string(e.TripRouteID), string(e.Type), statusString(e.FromStatus),
		statusString(e.ToStatus), location, e.Description, metadata, e.PerformedBy,
		e.PerformedByRole, e.Timestamp,
	)
	return err
}

// mapConstraint turns the partial unique indexes that back the exclusion rules into domain errors.
func mapConstraint(err error) error {
	switch {
	case err == nil:
		return nil
	case infra.IsUniqueViolation(err, "trip_routes_trip_number_key"):
		return ErrNumberTaken
	case infra.IsUniqueViolation(err, "trip_routes_busy_driver_key"):
		return ErrDriverBusy
	case infra.IsUniqueViolation(err, "trip_routes_busy_unit_key"):
		return ErrUnitBusy
	case infra.IsUniqueViolation(err, "trip_routes_open_order_key"):
		return ErrOrderHasTrip
	}
	return err
}

func encodeTrip(t *TripRoute) (origin, destination, metadata []byte, err error) {
	if origin, err = json.Marshal(t.Origin); err != nil {
		return
	}
	if destination, err = json.Marshal(t.Destination); err != nil {
		return
	}
	md := t.Metadata
	if md == nil {
		md = types.Metadata{}
	}
	metadata, err = json.Marshal(md)
	return
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*TripRoute, error) {
	var t TripRoute
	var origin, destination, metadata []byte
	var orderID *string
	err := row.Scan(&t.ID, &t.TripNumber, &origin, &destination, &t.EstimatedDistanceKm, &t.ActualDistanceKm,
		&t.EstimatedDurationHours, &t.ActualDurationHours, &t.Status, &t.DriverID, &t.UnitID, &orderID,
		&t.StartedAt, &t.ArrivedAt, &t.CompletedAt, &t.CancelledAt, &t.CancellationReason, &t.Notes,
		&metadata, &t.CreatedAt, &t.UpdatedAt)
	if infra.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if orderID != nil {
		id := types.ID(*orderID)
		t.OrderID = &id
	}
	if err := json.Unmarshal(origin, &t.Origin); err != nil {
		return nil, fmt.Errorf("decode origin: %w", err)
	}
	if err := json.Unmarshal(destination, &t.Destination); err != nil {
		return nil, fmt.Errorf("decode destination: %w", err)
	}
	if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &t, nil
}

// where accumulates AND-ed conditions with positional args.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) eq(column, value string) {
	if value != "" {
		w.add(column+" = $%d", value)
	}
}

func (w *where) createdBetween(from, to *time.Time) {
	if from != nil {
		w.add("created_at >= $%d", *from)
	}
	if to != nil {
		w.add("created_at <= $%d", *to)
	}
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func statusString(s *Status) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
