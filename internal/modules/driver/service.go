// README: Driver registration and externally triggered status changes.
package driver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"truckmatch/internal/clock"
	"truckmatch/internal/types"
)

type Repository interface {
	Create(ctx context.Context, d *Driver) error
	Get(ctx context.Context, id types.ID) (*Driver, error)
	SetStatus(ctx context.Context, id types.ID, status Status, at time.Time) error
}

type Service struct {
	repo  Repository
	clock clock.Clock
	log   *slog.Logger
}

func NewService(repo Repository, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{repo: repo, clock: clk, log: log}
}

type RegisterCommand struct {
	Name                  string
	License               string
	LicenseExpirationDate time.Time
	Status                Status
	Phone                 string
	Email                 string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Driver, error) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.License = strings.TrimSpace(cmd.License)
	if cmd.Status == "" {
		cmd.Status = StatusUnderReview
	}
	if !cmd.Status.Valid() {
		return nil, types.Validation("invalid driver status")
	}

	now := s.clock.Now()
	d := &Driver{
		ID:                    types.NewID(),
		Name:                  cmd.Name,
		License:               cmd.License,
		LicenseExpirationDate: cmd.LicenseExpirationDate,
		Status:                cmd.Status,
		Phone:                 cmd.Phone,
		Email:                 cmd.Email,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("driver registered", "driver_id", d.ID, "status", d.Status)
	return d, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) SetStatus(ctx context.Context, id types.ID, status Status) (*Driver, error) {
	if !status.Valid() {
		return nil, types.Validation("invalid driver status")
	}
	if err := s.repo.SetStatus(ctx, id, status, s.clock.Now()); err != nil {
		return nil, err
	}
	s.log.Info("driver status changed", "driver_id", id, "status", status)
	return s.repo.Get(ctx, id)
}
