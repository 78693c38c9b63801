// README: Document store backed by PostgreSQL; owner queries are keyed by (owner_kind, owner_id).
package document

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
	SELECT id, owner_kind, owner_id, type, url, expiration_date, status, created_at, updated_at
	FROM documents`

func (s *Store) Create(ctx context.Context, d *Document) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO documents (
			id, owner_kind, owner_id, type, url, expiration_date, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(d.ID), string(d.Owner.Kind), string(d.Owner.ID), string(d.Type), d.URL,
		d.ExpirationDate, string(d.Status), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Document, error) {
	row := s.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, string(id))
	d, err := scanDocument(row)
	if infra.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) ListByOwner(ctx context.Context, owner Owner) ([]Document, error) {
	return ListByOwner(ctx, s.db, owner)
}

// ListByOwner returns the owner's documents oldest first so repeated reads are stable.
func ListByOwner(ctx context.Context, q infra.Querier, owner Owner) ([]Document, error) {
	rows, err := q.Query(ctx, selectColumns+`
		WHERE owner_kind = $1 AND owner_id = $2
		ORDER BY created_at, id`, string(owner.Kind), string(owner.ID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) SetStatus(ctx context.Context, id types.ID, status Status, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), at, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE documents SET status = $1, updated_at = $2
		WHERE status <> $1 AND expiration_date IS NOT NULL AND expiration_date <= $2`,
		string(StatusExpired), now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Owner.Kind, &d.Owner.ID, &d.Type, &d.URL, &d.ExpirationDate,
		&d.Status, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}
