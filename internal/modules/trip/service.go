// README: Trip route service; gates, mutates and audits trips inside one transaction per operation.
package trip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"truckmatch/internal/clock"
	"truckmatch/internal/infra"
	"truckmatch/internal/modules/driver"
	"truckmatch/internal/modules/order"
	"truckmatch/internal/modules/unit"
	"truckmatch/internal/types"
)

// RouteEstimator fills distance and duration estimates the caller left out.
type RouteEstimator interface {
	Estimate(ctx context.Context, origin, destination types.Location) (distanceKm, durationHours float64, err error)
}

// Publisher receives events after their transaction commits.
type Publisher interface {
	Publish(ctx context.Context, events []Event) error
}

type Service struct {
	repo    Repository
	numbers infra.Sequencer
	clock   clock.Clock
	events  *EventLog
	busy    Availability
	claims  Availability
	routes  RouteEstimator
	feed    Publisher
	log     *slog.Logger
}

type Option func(*Service)

func WithRouteEstimator(r RouteEstimator) Option {
	return func(s *Service) { s.routes = r }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.feed = p }
}

func NewService(repo Repository, numbers infra.Sequencer, clk clock.Clock, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		numbers: numbers,
		clock:   clk,
		events:  NewEventLog(clk),
		busy:    NewAvailability(BusyStatuses...),
		claims:  NewAvailability(OpenStatuses...),
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const (
	minEstimate       = 0.1
	maxNumberAttempts = 3
)

type CreateCommand struct {
	Origin                 types.Location
	Destination            types.Location
	EstimatedDistanceKm    float64
	EstimatedDurationHours float64
	DriverID               types.ID
	UnitID                 types.ID
	OrderID                *types.ID
	Metadata               types.Metadata
	Notes                  string
	Actor                  Actor
}

type UpdateStatusCommand struct {
	TripID   types.ID
	Status   Status
	Location *types.Location
	Notes    string
	Actor    Actor
}

// UpdateCommand edits non-status fields. Nil fields are left unchanged.
type UpdateCommand struct {
	TripID                 types.ID
	Origin                 *types.Location
	Destination            *types.Location
	EstimatedDistanceKm    *float64
	EstimatedDurationHours *float64
	ActualDistanceKm       *float64
	DriverID               *types.ID
	UnitID                 *types.ID
	Notes                  *string
	Metadata               types.Metadata
	Actor                  Actor
}

// AddEventCommand appends a reported event to a trip's history without touching its status.
type AddEventCommand struct {
	TripID      types.ID
	Type        EventType
	Location    *types.Location
	Description string
	Metadata    types.Metadata
	Actor       Actor
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*TripRoute, error) {
	if err := s.prepareCreate(ctx, &cmd); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		created  *TripRoute
		appended []Event
		err      error
	)
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		var number string
		if number, err = s.numbers.Next(ctx, NumberPrefix, now); err != nil {
			return nil, err
		}
		created, appended, err = s.create(ctx, cmd, number)
		if !errors.Is(err, ErrNumberTaken) {
			break
		}
	}
	if err != nil {
		s.log.Debug("trip create rejected", "driver_id", cmd.DriverID, "unit_id", cmd.UnitID, "error", err)
		return nil, err
	}

	s.publish(ctx, appended)
	s.log.Info("trip created", "trip_id", created.ID, "trip_number", created.TripNumber,
		"driver_id", created.DriverID, "unit_id", created.UnitID)
	return created, nil
}

func (s *Service) prepareCreate(ctx context.Context, cmd *CreateCommand) error {
	if cmd.OrderID != nil && *cmd.OrderID == "" {
		cmd.OrderID = nil
	}
	if err := cmd.Origin.Validate("origin"); err != nil {
		return err
	}
	if err := cmd.Destination.Validate("destination"); err != nil {
		return err
	}
	if cmd.EstimatedDistanceKm == 0 && cmd.EstimatedDurationHours == 0 && s.routes != nil {
		km, hours, err := s.routes.Estimate(ctx, cmd.Origin, cmd.Destination)
		if err != nil {
			s.log.Warn("route estimate failed", "error", err)
		} else {
			cmd.EstimatedDistanceKm = roundTo2(km)
			cmd.EstimatedDurationHours = roundTo2(hours)
		}
	}
	// Zero estimates are only accepted when the route estimator can fill them.
	if cmd.EstimatedDistanceKm < minEstimate {
		return types.Validation("estimated_distance_km must be at least 0.1")
	}
	if cmd.EstimatedDurationHours < minEstimate {
		return types.Validation("estimated_duration_hours must be at least 0.1")
	}
	if cmd.Metadata == nil {
		cmd.Metadata = types.Metadata{}
	}
	return nil
}

func (s *Service) create(ctx context.Context, cmd CreateCommand, number string) (*TripRoute, []Event, error) {
	var (
		t        *TripRoute
		appended []Event
	)
	err := s.repo.InTx(ctx, func(tx Tx) error {
		appended = appended[:0]

		d, err := tx.LockDriver(ctx, cmd.DriverID)
		if err != nil {
			return err
		}
		if d.Status != driver.StatusActive {
			return driver.ErrNotActive
		}
		u, err := tx.LockUnit(ctx, cmd.UnitID)
		if err != nil {
			return err
		}
		if u.Status != unit.StatusActive {
			return unit.ErrNotActive
		}
		if cmd.OrderID != nil {
			if _, err := tx.LockOrder(ctx, *cmd.OrderID); err != nil {
				return err
			}
			held, err := tx.HasTrip(ctx, HolderQuery{OrderID: *cmd.OrderID, Statuses: OpenStatuses})
			if err != nil {
				return err
			}
			if held {
				return ErrOrderHasTrip
			}
		}
		if ok, err := s.claims.DriverAvailable(ctx, tx, cmd.DriverID, ""); err != nil {
			return err
		} else if !ok {
			return ErrDriverBusy
		}
		if ok, err := s.claims.UnitAvailable(ctx, tx, cmd.UnitID, ""); err != nil {
			return err
		} else if !ok {
			return ErrUnitBusy
		}

		now := s.clock.Now()
		t = &TripRoute{
			ID:                     types.NewID(),
			TripNumber:             number,
			Origin:                 cmd.Origin,
			Destination:            cmd.Destination,
			EstimatedDistanceKm:    cmd.EstimatedDistanceKm,
			EstimatedDurationHours: cmd.EstimatedDurationHours,
			Status:                 StatusCreated,
			DriverID:               cmd.DriverID,
			UnitID:                 cmd.UnitID,
			OrderID:                cmd.OrderID,
			Notes:                  cmd.Notes,
			Metadata:               cmd.Metadata,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		if err := tx.InsertTrip(ctx, t); err != nil {
			return err
		}

		description := cmd.Notes
		if description == "" {
			description = "Trip route created"
		}
		e, err := s.events.Append(ctx, tx, Event{
			TripRouteID:     t.ID,
			Type:            EventStatusChange,
			ToStatus:        statusPtr(StatusCreated),
			Description:     description,
			PerformedBy:     actorID(cmd.Actor),
			PerformedByRole: roleOr(cmd.Actor, DefaultRole),
		})
		if err != nil {
			return err
		}
		appended = append(appended, e)

		if cmd.OrderID != nil {
			if err := tx.SetOrderStatus(ctx, *cmd.OrderID, order.StatusAssigned, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return t, appended, nil
}

// UpdateStatus applies one edge of the status graph with its entry effects, audit event and order cascade.
func (s *Service) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*TripRoute, error) {
	if !cmd.Status.Valid() {
		return nil, types.Validation("invalid trip status")
	}
	if cmd.Location != nil {
		if err := cmd.Location.Validate("location"); err != nil {
			return nil, err
		}
	}

	var (
		t        *TripRoute
		from     Status
		appended []Event
	)
	err := s.repo.InTx(ctx, func(tx Tx) error {
		appended = appended[:0]

		var err error
		if t, err = tx.LockTrip(ctx, cmd.TripID); err != nil {
			return err
		}
		from = t.Status
		if !CanTransition(from, cmd.Status) {
			return transitionError(from, cmd.Status)
		}
		if cmd.Status == StatusAssigned {
			if err := s.checkBusy(ctx, tx, t); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		cascade := enter(t, cmd.Status, now, cmd.Notes)
		if err := tx.SaveTrip(ctx, t); err != nil {
			return err
		}

		description := cmd.Notes
		if description == "" {
			description = fmt.Sprintf("Status changed from %s to %s", from, cmd.Status)
		}
		e, err := s.events.Append(ctx, tx, Event{
			TripRouteID:     t.ID,
			Type:            EventStatusChange,
			FromStatus:      statusPtr(from),
			ToStatus:        statusPtr(cmd.Status),
			Location:        cmd.Location,
			Description:     description,
			PerformedBy:     actorID(cmd.Actor),
			PerformedByRole: roleOr(cmd.Actor, "driver"),
		})
		if err != nil {
			return err
		}
		appended = append(appended, e)

		if cascade != "" {
			return tx.SetOrderStatus(ctx, *t.OrderID, cascade, now)
		}
		return nil
	})
	if err != nil {
		s.log.Debug("trip status change rejected", "trip_id", cmd.TripID, "to", cmd.Status, "error", err)
		return nil, err
	}

	s.publish(ctx, appended)
	s.log.Info("trip status changed", "trip_id", t.ID, "from", from, "to", t.Status)
	return t, nil
}

// checkBusy re-verifies the busy-set exclusion when a trip starts holding its driver and unit.
func (s *Service) checkBusy(ctx context.Context, tx Tx, t *TripRoute) error {
	if _, err := tx.LockDriver(ctx, t.DriverID); err != nil {
		return err
	}
	if _, err := tx.LockUnit(ctx, t.UnitID); err != nil {
		return err
	}
	if ok, err := s.busy.DriverAvailable(ctx, tx, t.DriverID, t.ID); err != nil {
		return err
	} else if !ok {
		return ErrDriverBusy
	}
	if ok, err := s.busy.UnitAvailable(ctx, tx, t.UnitID, t.ID); err != nil {
		return err
	} else if !ok {
		return ErrUnitBusy
	}
	return nil
}

func transitionError(from, to Status) error {
	allowed := AllowedFrom(from)
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return &types.TransitionError{From: string(from), To: string(to), Allowed: names}
}

// Update edits a non-terminal trip. Driver and unit changes are re-gated and audited as reassignments.
func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (*TripRoute, error) {
	if err := validateUpdate(cmd); err != nil {
		return nil, err
	}

	var (
		t        *TripRoute
		appended []Event
	)
	err := s.repo.InTx(ctx, func(tx Tx) error {
		appended = appended[:0]

		var err error
		if t, err = tx.LockTrip(ctx, cmd.TripID); err != nil {
			return err
		}
		if t.Status.Terminal() {
			return ErrTerminalImmutable
		}

		var reassignments []Event
		if cmd.DriverID != nil && *cmd.DriverID != t.DriverID {
			e, err := s.reassignDriver(ctx, tx, t, *cmd.DriverID)
			if err != nil {
				return err
			}
			reassignments = append(reassignments, e)
		}
		if cmd.UnitID != nil && *cmd.UnitID != t.UnitID {
			e, err := s.reassignUnit(ctx, tx, t, *cmd.UnitID)
			if err != nil {
				return err
			}
			reassignments = append(reassignments, e)
		}

		edits := applyFields(t, cmd)
		if len(reassignments) == 0 && edits.empty() {
			return nil
		}

		t.UpdatedAt = s.clock.Now()
		if err := tx.SaveTrip(ctx, t); err != nil {
			return err
		}
		for _, e := range append(reassignments, edits.events(t.ID)...) {
			e.PerformedBy = actorID(cmd.Actor)
			e.PerformedByRole = roleOr(cmd.Actor, DefaultRole)
			stamped, err := s.events.Append(ctx, tx, e)
			if err != nil {
				return err
			}
			appended = append(appended, stamped)
		}
		return nil
	})
	if err != nil {
		s.log.Debug("trip update rejected", "trip_id", cmd.TripID, "error", err)
		return nil, err
	}

	s.publish(ctx, appended)
	if len(appended) > 0 {
		s.log.Info("trip updated", "trip_id", t.ID, "events", len(appended))
	}
	return t, nil
}

func (s *Service) reassignDriver(ctx context.Context, tx Tx, t *TripRoute, next types.ID) (Event, error) {
	d, err := tx.LockDriver(ctx, next)
	if err != nil {
		return Event{}, err
	}
	if d.Status != driver.StatusActive {
		return Event{}, driver.ErrNotActive
	}
	if ok, err := s.claims.DriverAvailable(ctx, tx, next, t.ID); err != nil {
		return Event{}, err
	} else if !ok {
		return Event{}, ErrDriverBusy
	}
	prev := t.DriverID
	t.DriverID = next
	return Event{
		TripRouteID: t.ID,
		Type:        EventReassignment,
		Description: fmt.Sprintf("Driver changed from %s to %s", prev, next),
		Metadata:    types.Metadata{"old_driver_id": string(prev), "new_driver_id": string(next)},
	}, nil
}

func (s *Service) reassignUnit(ctx context.Context, tx Tx, t *TripRoute, next types.ID) (Event, error) {
	u, err := tx.LockUnit(ctx, next)
	if err != nil {
		return Event{}, err
	}
	if u.Status != unit.StatusActive {
		return Event{}, unit.ErrNotActive
	}
	if ok, err := s.claims.UnitAvailable(ctx, tx, next, t.ID); err != nil {
		return Event{}, err
	} else if !ok {
		return Event{}, ErrUnitBusy
	}
	prev := t.UnitID
	t.UnitID = next
	return Event{
		TripRouteID: t.ID,
		Type:        EventReassignment,
		Description: fmt.Sprintf("Unit changed from %s to %s", prev, next),
		Metadata:    types.Metadata{"old_unit_id": string(prev), "new_unit_id": string(next)},
	}, nil
}

func validateUpdate(cmd UpdateCommand) error {
	if cmd.Origin != nil {
		if err := cmd.Origin.Validate("origin"); err != nil {
			return err
		}
	}
	if cmd.Destination != nil {
		if err := cmd.Destination.Validate("destination"); err != nil {
			return err
		}
	}
	return nil
}

// edits are the plain-field changes of one Update, split by the event each one is audited under.
type edits struct {
	fields   []string
	notes    *string
	metadata types.Metadata
}

func (e edits) empty() bool {
	return len(e.fields) == 0 && e.notes == nil && e.metadata == nil
}

func (e edits) events(tripID types.ID) []Event {
	var out []Event
	if len(e.fields) > 0 {
		out = append(out, Event{
			TripRouteID: tripID,
			Type:        EventMetadataUpdated,
			Description: "Trip details updated",
			Metadata:    types.Metadata{"fields": e.fields},
		})
	}
	if e.notes != nil {
		description := *e.notes
		if description == "" {
			description = "Notes cleared"
		}
		out = append(out, Event{TripRouteID: tripID, Type: EventNoteAdded, Description: description})
	}
	if e.metadata != nil {
		out = append(out, Event{
			TripRouteID: tripID,
			Type:        EventMetadataUpdated,
			Description: "Trip metadata updated",
			Metadata:    e.metadata,
		})
	}
	return out
}

// applyFields copies the supplied plain fields onto t and records the ones that actually changed.
func applyFields(t *TripRoute, cmd UpdateCommand) edits {
	var ed edits
	if cmd.Origin != nil && !cmd.Origin.Equal(t.Origin) {
		t.Origin = *cmd.Origin
		ed.fields = append(ed.fields, "origin")
	}
	if cmd.Destination != nil && !cmd.Destination.Equal(t.Destination) {
		t.Destination = *cmd.Destination
		ed.fields = append(ed.fields, "destination")
	}
	if v := cmd.EstimatedDistanceKm; v != nil && *v != t.EstimatedDistanceKm {
		t.EstimatedDistanceKm = *v
		ed.fields = append(ed.fields, "estimated_distance_km")
	}
	if v := cmd.EstimatedDurationHours; v != nil && *v != t.EstimatedDurationHours {
		t.EstimatedDurationHours = *v
		ed.fields = append(ed.fields, "estimated_duration_hours")
	}
	if v := cmd.ActualDistanceKm; v != nil && (t.ActualDistanceKm == nil || *t.ActualDistanceKm != *v) {
		km := *v
		t.ActualDistanceKm = &km
		ed.fields = append(ed.fields, "actual_distance_km")
	}
	if v := cmd.Notes; v != nil && *v != t.Notes {
		t.Notes = *v
		ed.notes = v
	}
	if cmd.Metadata != nil && !reflect.DeepEqual(cmd.Metadata, t.Metadata) {
		t.Metadata = cmd.Metadata
		ed.metadata = cmd.Metadata
	}
	return ed
}

// AddEvent records a location update, note, delay or incident on a trip that is still open.
func (s *Service) AddEvent(ctx context.Context, cmd AddEventCommand) (*Event, error) {
	if !cmd.Type.Reportable() {
		return nil, ErrNotReportable
	}
	if cmd.Type == EventLocationUpdate && cmd.Location == nil {
		return nil, ErrLocationRequired
	}
	if cmd.Type == EventNoteAdded && cmd.Description == "" {
		return nil, ErrNoteRequired
	}
	if cmd.Location != nil {
		if err := cmd.Location.Validate("location"); err != nil {
			return nil, err
		}
	}

	var appended Event
	err := s.repo.InTx(ctx, func(tx Tx) error {
		t, err := tx.LockTrip(ctx, cmd.TripID)
		if err != nil {
			return err
		}
		if t.Status.Terminal() {
			return ErrTerminalImmutable
		}
		description := cmd.Description
		if description == "" {
			description = defaultDescriptions[cmd.Type]
		}
		appended, err = s.events.Append(ctx, tx, Event{
			TripRouteID:     t.ID,
			Type:            cmd.Type,
			Location:        cmd.Location,
			Description:     description,
			Metadata:        cmd.Metadata,
			PerformedBy:     actorID(cmd.Actor),
			PerformedByRole: roleOr(cmd.Actor, "driver"),
		})
		return err
	})
	if err != nil {
		s.log.Debug("trip event rejected", "trip_id", cmd.TripID, "event_type", cmd.Type, "error", err)
		return nil, err
	}

	s.publish(ctx, []Event{appended})
	s.log.Info("trip event added", "trip_id", cmd.TripID, "event_type", cmd.Type)
	return &appended, nil
}

var defaultDescriptions = map[EventType]string{
	EventLocationUpdate:   "Location updated",
	EventDelayReported:    "Delay reported",
	EventIncidentReported: "Incident reported",
}

// Delete removes a trip that has nothing in flight, together with its history.
func (s *Service) Delete(ctx context.Context, id types.ID) error {
	err := s.repo.InTx(ctx, func(tx Tx) error {
		t, err := tx.LockTrip(ctx, id)
		if err != nil {
			return err
		}
		if !t.Status.Deletable() {
			return ErrNotDeletable
		}
		return tx.DeleteTrip(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("trip deleted", "trip_id", id)
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*TripRoute, error) {
	return s.repo.Get(ctx, id)
}

// History returns the trip's events ordered by timestamp ascending.
func (s *Service) History(ctx context.Context, id types.ID) ([]Event, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]TripRoute, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, types.Validation("invalid trip status")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Statistics(ctx context.Context, f StatsFilter) (Statistics, error) {
	totals, err := s.repo.Totals(ctx, f)
	if err != nil {
		return Statistics{}, err
	}
	return buildStatistics(totals), nil
}

func (s *Service) publish(ctx context.Context, events []Event) {
	if s.feed == nil || len(events) == 0 {
		return
	}
	if err := s.feed.Publish(ctx, events); err != nil {
		s.log.Warn("publish trip events", "trip_id", events[0].TripRouteID, "error", err)
	}
}
