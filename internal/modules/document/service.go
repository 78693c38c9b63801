// README: Document metadata registration and review status changes. Files are stored elsewhere; only the url is kept.
package document

import (
	"context"
	"log/slog"
	"time"

	"truckmatch/internal/clock"
	"truckmatch/internal/types"
)

type Repository interface {
	Create(ctx context.Context, d *Document) error
	Get(ctx context.Context, id types.ID) (*Document, error)
	ListByOwner(ctx context.Context, owner Owner) ([]Document, error)
	SetStatus(ctx context.Context, id types.ID, status Status, at time.Time) error
	// ExpireDue marks every non-expired document whose expiration date is at or before now as expired.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

type Service struct {
	repo  Repository
	clock clock.Clock
	log   *slog.Logger
}

func NewService(repo Repository, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{repo: repo, clock: clk, log: log}
}

type AttachCommand struct {
	Owner          Owner
	Type           Type
	URL            string
	ExpirationDate *time.Time
	Status         Status
}

func (s *Service) Attach(ctx context.Context, cmd AttachCommand) (*Document, error) {
	if !cmd.Owner.Valid() {
		return nil, types.Validation("owner must be a driver or unit id")
	}
	if !cmd.Type.Valid() {
		return nil, types.Validation("invalid document type")
	}
	if cmd.Status == "" {
		cmd.Status = StatusPendingReview
	}
	if !cmd.Status.Valid() {
		return nil, types.Validation("invalid document status")
	}

	now := s.clock.Now()
	d := &Document{
		ID:             types.NewID(),
		Owner:          cmd.Owner,
		Type:           cmd.Type,
		URL:            cmd.URL,
		ExpirationDate: cmd.ExpirationDate,
		Status:         cmd.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("document attached", "document_id", d.ID, "owner_kind", d.Owner.Kind, "owner_id", d.Owner.ID)
	return d, nil
}

func (s *Service) ListByOwner(ctx context.Context, owner Owner) ([]Document, error) {
	if !owner.Valid() {
		return nil, types.Validation("owner must be a driver or unit id")
	}
	return s.repo.ListByOwner(ctx, owner)
}

func (s *Service) SetStatus(ctx context.Context, id types.ID, status Status) (*Document, error) {
	if !status.Valid() {
		return nil, types.Validation("invalid document status")
	}
	if err := s.repo.SetStatus(ctx, id, status, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// ExpireDue flips lapsed documents to expired and returns how many changed.
func (s *Service) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireDue(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("documents expired", "count", n)
	}
	return n, nil
}

// RunExpiryTicker sweeps lapsed documents every interval until ctx ends.
func (s *Service) RunExpiryTicker(ctx context.Context, every time.Duration) {
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
			if _, err := s.ExpireDue(ctx); err != nil {
				s.log.Warn("expire documents", "error", err)
			}
		}
	}
}
