// README: Order store backed by PostgreSQL; lock and cascade helpers run on a caller's transaction.
package order

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"truckmatch/internal/infra"
	"truckmatch/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectColumns = `
	SELECT id, order_number, origin, destination, cargo_weight, cargo_weight_unit, status,
	       client_id, rate_amount, rate_currency, notes, created_at, updated_at
	FROM orders`

func (s *Store) Create(ctx context.Context, o *Order) error {
	origin, err := json.Marshal(o.Origin)
	if err != nil {
		return err
	}
	destination, err := json.Marshal(o.Destination)
	if err != nil {
		return err
	}
	var amount *int64
	currency := types.DefaultCurrency
	if o.Rate != nil {
		amount = &o.Rate.Amount
		currency = o.Rate.Currency
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, origin, destination, cargo_weight, cargo_weight_unit, status,
			client_id, rate_amount, rate_currency, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		string(o.ID), o.OrderNumber, origin, destination, o.CargoWeight, string(o.CargoWeightUnit),
		string(o.Status), toStringPtr(o.ClientID), amount, currency, o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	if infra.IsUniqueViolation(err, "orders_order_number_key") {
		return ErrNumberTaken
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	return scanOne(s.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, string(id)))
}

type ListFilter struct {
	Status Status
	Page   int
	Limit  int
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	where, args := "", []any{}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = " WHERE status = $1"
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := s.db.Query(ctx, fmt.Sprintf("%s%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d",
		selectColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOne(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

// CancelPending cancels the order only while it is still pending.
func (s *Store) CancelPending(ctx context.Context, id types.ID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders SET status = 'cancelled', updated_at = $1
		WHERE id = $2 AND status = 'pending'`, at, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetForUpdate loads and row-locks the order on q until the transaction ends.
func GetForUpdate(ctx context.Context, q infra.Querier, id types.ID) (*Order, error) {
	return scanOne(q.QueryRow(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, string(id)))
}

// SetStatus writes a cascaded status on q.
func SetStatus(ctx context.Context, q infra.Querier, id types.ID, status Status, at time.Time) error {
	tag, err := q.Exec(ctx, `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
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

func scanOne(row rowScanner) (*Order, error) {
	var o Order
	var origin, destination []byte
	var clientID *string
	var amount *int64
	var currency string
	err := row.Scan(&o.ID, &o.OrderNumber, &origin, &destination, &o.CargoWeight, &o.CargoWeightUnit,
		&o.Status, &clientID, &amount, &currency, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if infra.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(origin, &o.Origin); err != nil {
		return nil, fmt.Errorf("decode origin: %w", err)
	}
	if err := json.Unmarshal(destination, &o.Destination); err != nil {
		return nil, fmt.Errorf("decode destination: %w", err)
	}
	if clientID != nil {
		c := types.ID(*clientID)
		o.ClientID = &c
	}
	if amount != nil {
		o.Rate = &types.Money{Amount: *amount, Currency: strings.ToUpper(currency)}
	}
	return &o, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
