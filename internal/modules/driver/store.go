// README: Driver store backed by PostgreSQL; row-lock helpers run on a caller's transaction.
package driver

import (
	"context"
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
	SELECT id, name, license, license_expiration_date, status, phone, email, created_at, updated_at
	FROM drivers`

func (s *Store) Create(ctx context.Context, d *Driver) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO drivers (
			id, name, license, license_expiration_date, status, phone, email, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(d.ID), d.Name, d.License, d.LicenseExpirationDate, string(d.Status),
		d.Phone, d.Email, d.CreatedAt, d.UpdatedAt,
	)
	if infra.IsUniqueViolation(err, "drivers_license_key") {
		return ErrLicenseTaken
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return scanOne(s.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, string(id)))
}

// GetForUpdate loads and row-locks the driver on q until the transaction ends.
func GetForUpdate(ctx context.Context, q infra.Querier, id types.ID) (*Driver, error) {
	return scanOne(q.QueryRow(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, string(id)))
}

func (s *Store) SetStatus(ctx context.Context, id types.ID, status Status, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE drivers SET status = $1, updated_at = $2 WHERE id = $3`,
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

func scanOne(row rowScanner) (*Driver, error) {
	var d Driver
	err := row.Scan(&d.ID, &d.Name, &d.License, &d.LicenseExpirationDate, &d.Status,
		&d.Phone, &d.Email, &d.CreatedAt, &d.UpdatedAt)
	if infra.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
