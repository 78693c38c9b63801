package unit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"truckmatch/internal/clock"
	"truckmatch/internal/modules/driver"
	"truckmatch/internal/types"
)

type memRepo struct {
	mu      sync.Mutex
	units   map[types.ID]*Unit
	drivers map[types.ID]*driver.Driver
	// busy lists units on a ready or started assignment.
	busy map[types.ID]bool
}

func newMemRepo() *memRepo {
	return &memRepo{units: map[types.ID]*Unit{}, drivers: map[types.ID]*driver.Driver{}, busy: map[types.ID]bool{}}
}

func (m *memRepo) InTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(memTx{m})
}

type memTx struct{ m *memRepo }

func (t memTx) LockDriver(_ context.Context, id types.ID) (*driver.Driver, error) {
	d, ok := t.m.drivers[id]
	if !ok {
		return nil, driver.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (t memTx) LockUnit(_ context.Context, id types.ID) (*Unit, error) {
	u, ok := t.m.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (t memTx) HasActiveAssignment(_ context.Context, unitID types.ID) (bool, error) {
	return t.m.busy[unitID], nil
}

func (t memTx) SetDriver(_ context.Context, id types.ID, driverID *types.ID, status Status, at time.Time) error {
	u, ok := t.m.units[id]
	if !ok {
		return ErrNotFound
	}
	u.DriverID, u.Status, u.UpdatedAt = driverID, status, at
	return nil
}

func (m *memRepo) Create(_ context.Context, u *Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.units {
		if existing.PlateNumber == u.PlateNumber {
			return ErrPlateTaken
		}
	}
	cp := *u
	m.units[u.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, id types.ID) (*Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) SetStatus(_ context.Context, id types.ID, status Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	if !ok {
		return ErrNotFound
	}
	u.Status, u.UpdatedAt = status, at
	return nil
}

func newTestService() *Service {
	return newServiceWith(newMemRepo())
}

func newServiceWith(repo *memRepo) *Service {
	return NewService(repo,
		clock.Fake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterNormalizesPlate(t *testing.T) {
	svc := newTestService()
	u, err := svc.Register(context.Background(), RegisterCommand{PlateNumber: " abc-123 ", Type: TypeTruck, Capacity: 20})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.PlateNumber != "ABC-123" {
		t.Errorf("plate = %q", u.PlateNumber)
	}
	if u.Status != StatusActive || u.CapacityUnit != CapacityTons {
		t.Errorf("unexpected defaults: %+v", u)
	}

	_, err = svc.Register(context.Background(), RegisterCommand{PlateNumber: "ABC-123", Type: TypeVan})
	if !errors.Is(err, types.ErrConflict) {
		t.Fatalf("expected conflict on duplicate plate, got %v", err)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	svc := newTestService()
	cases := []RegisterCommand{
		{PlateNumber: "P1", Type: "bus"},
		{PlateNumber: "P3", Type: TypeTruck, CapacityUnit: "lbs"},
		{PlateNumber: "P4", Type: TypeTruck, Status: "parked"},
	}
	for i, cmd := range cases {
		if _, err := svc.Register(context.Background(), cmd); !errors.Is(err, types.ErrValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestSetStatusMaintenance(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u, _ := svc.Register(ctx, RegisterCommand{PlateNumber: "M1", Type: TypeTrailer})
	got, err := svc.SetStatus(ctx, u.ID, StatusMaintenance)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if got.Status != StatusMaintenance {
		t.Fatalf("expected maintenance, got %s", got.Status)
	}
}

func TestAssignDriver(t *testing.T) {
	repo := newMemRepo()
	repo.drivers["d1"] = &driver.Driver{ID: "d1", Status: driver.StatusActive}
	repo.drivers["d2"] = &driver.Driver{ID: "d2", Status: driver.StatusUnderReview}
	svc := newServiceWith(repo)
	ctx := context.Background()
	u, _ := svc.Register(ctx, RegisterCommand{PlateNumber: "A1", Type: TypeTruck})

	if _, err := svc.AssignDriver(ctx, u.ID, "d2"); !errors.Is(err, ErrDriverNotActive) {
		t.Fatalf("expected inactive driver rejection, got %v", err)
	}
	if _, err := svc.AssignDriver(ctx, u.ID, "ghost"); !errors.Is(err, driver.ErrNotFound) {
		t.Fatalf("expected driver not found, got %v", err)
	}
	if _, err := svc.AssignDriver(ctx, "missing", "d1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unit not found, got %v", err)
	}

	got, err := svc.AssignDriver(ctx, u.ID, "d1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got.Status != StatusAssigned || got.DriverID == nil || *got.DriverID != "d1" {
		t.Fatalf("unexpected unit: %+v", got)
	}
	if stored := repo.units[u.ID]; stored.Status != StatusAssigned {
		t.Fatalf("not persisted: %+v", stored)
	}
	if _, err := svc.AssignDriver(ctx, u.ID, "d1"); !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("expected already assigned, got %v", err)
	}
}

func TestUnassignDriver(t *testing.T) {
	repo := newMemRepo()
	repo.drivers["d1"] = &driver.Driver{ID: "d1", Status: driver.StatusActive}
	svc := newServiceWith(repo)
	ctx := context.Background()
	u, _ := svc.Register(ctx, RegisterCommand{PlateNumber: "B2", Type: TypeVan})

	if _, err := svc.UnassignDriver(ctx, u.ID); !errors.Is(err, ErrNoDriver) {
		t.Fatalf("expected no driver, got %v", err)
	}
	if _, err := svc.AssignDriver(ctx, u.ID, "d1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	repo.busy[u.ID] = true
	if _, err := svc.UnassignDriver(ctx, u.ID); !errors.Is(err, ErrHasActiveAssignment) {
		t.Fatalf("expected active assignment rejection, got %v", err)
	}
	if repo.units[u.ID].DriverID == nil {
		t.Fatalf("rejected unassign cleared the driver")
	}

	repo.busy[u.ID] = false
	got, err := svc.UnassignDriver(ctx, u.ID)
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if got.DriverID != nil || got.Status != StatusActive {
		t.Fatalf("unexpected unit: %+v", got)
	}
}
