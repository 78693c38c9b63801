package assignment

import (
	"context"
	"sort"
	"sync"
	"time"

	"truckmatch/internal/modules/document"
	"truckmatch/internal/modules/driver"
	"truckmatch/internal/modules/order"
	"truckmatch/internal/modules/unit"
	"truckmatch/internal/types"
)

// memRepo serialises transactions on one mutex and restores a snapshot when fn fails.
type memRepo struct {
	mu          sync.Mutex
	drivers     map[types.ID]*driver.Driver
	units       map[types.ID]*unit.Unit
	orders      map[types.ID]*order.Order
	documents   []document.Document
	assignments map[types.ID]*Assignment
}

func newMemRepo() *memRepo {
	return &memRepo{
		drivers:     map[types.ID]*driver.Driver{},
		units:       map[types.ID]*unit.Unit{},
		orders:      map[types.ID]*order.Order{},
		assignments: map[types.ID]*Assignment{},
	}
}

type memSnapshot struct {
	units       map[types.ID]unit.Unit
	orders      map[types.ID]order.Order
	assignments map[types.ID]Assignment
}

func (m *memRepo) snapshot() memSnapshot {
	s := memSnapshot{
		units:       map[types.ID]unit.Unit{},
		orders:      map[types.ID]order.Order{},
		assignments: map[types.ID]Assignment{},
	}
	for id, u := range m.units {
		s.units[id] = *u
	}
	for id, o := range m.orders {
		s.orders[id] = *o
	}
	for id, a := range m.assignments {
		s.assignments[id] = *a
	}
	return s
}

func (m *memRepo) restore(s memSnapshot) {
	m.units = map[types.ID]*unit.Unit{}
	for id, u := range s.units {
		u := u
		m.units[id] = &u
	}
	m.orders = map[types.ID]*order.Order{}
	for id, o := range s.orders {
		o := o
		m.orders[id] = &o
	}
	m.assignments = map[types.ID]*Assignment{}
	for id, a := range s.assignments {
		a := a
		m.assignments[id] = &a
	}
}

func (m *memRepo) InTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	if err := fn(&memTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memRepo) Get(_ context.Context, id types.ID) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]Assignment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Assignment
	for _, a := range m.assignments {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.DriverID != "" && a.DriverID != f.DriverID {
			continue
		}
		if f.UnitID != "" && a.UnitID != f.UnitID {
			continue
		}
		if f.OrderID != "" && a.OrderID != f.OrderID {
			continue
		}
		all = append(all, *a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *memRepo) IDsByStatus(_ context.Context, status Status) ([]types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []types.ID
	for id, a := range m.assignments {
		if a.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// memTx runs with memRepo.mu held.
type memTx struct {
	m *memRepo
}

func (tx *memTx) Driver(_ context.Context, id types.ID) (*driver.Driver, error) {
	d, ok := tx.m.drivers[id]
	if !ok {
		return nil, driver.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (tx *memTx) Unit(_ context.Context, id types.ID) (*unit.Unit, error) {
	u, ok := tx.m.units[id]
	if !ok {
		return nil, unit.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (tx *memTx) Documents(_ context.Context, owner document.Owner) ([]document.Document, error) {
	var out []document.Document
	for _, d := range tx.m.documents {
		if d.Owner == owner {
			out = append(out, d)
		}
	}
	return out, nil
}

func (tx *memTx) HasActive(_ context.Context, q ActiveQuery) (bool, error) {
	for _, a := range tx.m.assignments {
		if a.ID == q.ExcludeID || (a.Status != StatusReady && a.Status != StatusStarted) {
			continue
		}
		if q.DriverID != "" && a.DriverID == q.DriverID {
			return true, nil
		}
		if q.UnitID != "" && a.UnitID == q.UnitID {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) LockAssignment(_ context.Context, id types.ID) (*Assignment, error) {
	a, ok := tx.m.assignments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (tx *memTx) LockDriver(ctx context.Context, id types.ID) (*driver.Driver, error) {
	return tx.Driver(ctx, id)
}

func (tx *memTx) LockUnit(ctx context.Context, id types.ID) (*unit.Unit, error) {
	return tx.Unit(ctx, id)
}

func (tx *memTx) LockOrder(_ context.Context, id types.ID) (*order.Order, error) {
	o, ok := tx.m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (tx *memTx) OrderHasAssignment(_ context.Context, orderID types.ID) (bool, error) {
	for _, a := range tx.m.assignments {
		if a.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) InsertAssignment(_ context.Context, a *Assignment) error {
	cp := *a
	tx.m.assignments[a.ID] = &cp
	return nil
}

func (tx *memTx) SaveAssignment(_ context.Context, a *Assignment) error {
	if _, ok := tx.m.assignments[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	tx.m.assignments[a.ID] = &cp
	return nil
}

func (tx *memTx) DeleteAssignment(_ context.Context, id types.ID) error {
	if _, ok := tx.m.assignments[id]; !ok {
		return ErrNotFound
	}
	delete(tx.m.assignments, id)
	return nil
}

func (tx *memTx) SetOrderStatus(_ context.Context, id types.ID, status order.Status, at time.Time) error {
	o, ok := tx.m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status, o.UpdatedAt = status, at
	return nil
}

func (tx *memTx) SetUnitStatus(_ context.Context, id types.ID, status unit.Status, at time.Time) error {
	u, ok := tx.m.units[id]
	if !ok {
		return unit.ErrNotFound
	}
	u.Status, u.UpdatedAt = status, at
	return nil
}
