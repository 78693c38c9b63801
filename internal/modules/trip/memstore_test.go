package trip

import (
	"context"
	"sort"
	"sync"
	"time"

	"truckmatch/internal/modules/driver"
	"truckmatch/internal/modules/order"
	"truckmatch/internal/modules/unit"
	"truckmatch/internal/types"
)

// memRepo serialises transactions on one mutex and restores a snapshot when fn fails.
type memRepo struct {
	mu      sync.Mutex
	drivers map[types.ID]*driver.Driver
	units   map[types.ID]*unit.Unit
	orders  map[types.ID]*order.Order
	trips   map[types.ID]*TripRoute
	events  []Event

	// failEvent, when set, is returned by InsertEvent.
	failEvent error
}

func newMemRepo() *memRepo {
	return &memRepo{
		drivers: map[types.ID]*driver.Driver{},
		units:   map[types.ID]*unit.Unit{},
		orders:  map[types.ID]*order.Order{},
		trips:   map[types.ID]*TripRoute{},
	}
}

type memSnapshot struct {
	orders map[types.ID]order.Order
	trips  map[types.ID]*TripRoute
	events []Event
}

func (m *memRepo) snapshot() memSnapshot {
	s := memSnapshot{
		orders: make(map[types.ID]order.Order, len(m.orders)),
		trips:  make(map[types.ID]*TripRoute, len(m.trips)),
		events: append([]Event(nil), m.events...),
	}
	for id, o := range m.orders {
		s.orders[id] = *o
	}
	for id, t := range m.trips {
		s.trips[id] = t.Clone()
	}
	return s
}

func (m *memRepo) restore(s memSnapshot) {
	m.orders = make(map[types.ID]*order.Order, len(s.orders))
	for id, o := range s.orders {
		o := o
		m.orders[id] = &o
	}
	m.trips = s.trips
	m.events = s.events
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

func (m *memRepo) Get(_ context.Context, id types.ID) (*TripRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]TripRoute, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []TripRoute
	for _, t := range m.trips {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.DriverID != "" && t.DriverID != f.DriverID {
			continue
		}
		if f.UnitID != "" && t.UnitID != f.UnitID {
			continue
		}
		if f.OrderID != "" && (t.OrderID == nil || *t.OrderID != f.OrderID) {
			continue
		}
		if !inRange(t.CreatedAt, f.CreatedFrom, f.CreatedTo) {
			continue
		}
		all = append(all, *t.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
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

func (m *memRepo) History(_ context.Context, tripID types.ID) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.TripRouteID == tripID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *memRepo) Totals(_ context.Context, f StatsFilter) (Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := Totals{Counts: map[Status]int{}}
	for _, t := range m.trips {
		if f.DriverID != "" && t.DriverID != f.DriverID {
			continue
		}
		if !inRange(t.CreatedAt, f.CreatedFrom, f.CreatedTo) {
			continue
		}
		totals.Counts[t.Status]++
		if t.Status != StatusCompleted {
			continue
		}
		if t.ActualDistanceKm != nil {
			totals.CompletedDistanceKm += *t.ActualDistanceKm
		}
		if t.ActualDurationHours != nil {
			totals.CompletedHoursSum += *t.ActualDurationHours
			totals.CompletedHoursCount++
		}
	}
	return totals, nil
}

func inRange(at time.Time, from, to *time.Time) bool {
	if from != nil && at.Before(*from) {
		return false
	}
	if to != nil && at.After(*to) {
		return false
	}
	return true
}

// memTx runs with memRepo.mu held.
type memTx struct {
	m *memRepo
}

func (tx *memTx) HasTrip(_ context.Context, q HolderQuery) (bool, error) {
	for _, t := range tx.m.trips {
		if t.ID == q.ExcludeID {
			continue
		}
		if q.DriverID != "" && t.DriverID != q.DriverID {
			continue
		}
		if q.UnitID != "" && t.UnitID != q.UnitID {
			continue
		}
		if q.OrderID != "" && (t.OrderID == nil || *t.OrderID != q.OrderID) {
			continue
		}
		for _, s := range q.Statuses {
			if t.Status == s {
				return true, nil
			}
		}
	}
	return false, nil
}

func (tx *memTx) InsertEvent(_ context.Context, e *Event) error {
	if tx.m.failEvent != nil {
		return tx.m.failEvent
	}
	tx.m.events = append(tx.m.events, *e)
	return nil
}

func (tx *memTx) LockTrip(_ context.Context, id types.ID) (*TripRoute, error) {
	t, ok := tx.m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (tx *memTx) LockDriver(_ context.Context, id types.ID) (*driver.Driver, error) {
	d, ok := tx.m.drivers[id]
	if !ok {
		return nil, driver.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (tx *memTx) LockUnit(_ context.Context, id types.ID) (*unit.Unit, error) {
	u, ok := tx.m.units[id]
	if !ok {
		return nil, unit.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (tx *memTx) LockOrder(_ context.Context, id types.ID) (*order.Order, error) {
	o, ok := tx.m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (tx *memTx) InsertTrip(_ context.Context, t *TripRoute) error {
	for _, existing := range tx.m.trips {
		if existing.TripNumber == t.TripNumber {
			return ErrNumberTaken
		}
	}
	tx.m.trips[t.ID] = t.Clone()
	return nil
}

func (tx *memTx) SaveTrip(_ context.Context, t *TripRoute) error {
	if _, ok := tx.m.trips[t.ID]; !ok {
		return ErrNotFound
	}
	tx.m.trips[t.ID] = t.Clone()
	return nil
}

func (tx *memTx) DeleteTrip(_ context.Context, id types.ID) error {
	if _, ok := tx.m.trips[id]; !ok {
		return ErrNotFound
	}
	delete(tx.m.trips, id)
	kept := tx.m.events[:0]
	for _, e := range tx.m.events {
		if e.TripRouteID != id {
			kept = append(kept, e)
		}
	}
	tx.m.events = kept
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
