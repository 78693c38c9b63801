// README: Trip route handlers: create, status change, edit, delete, history, listing and statistics.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"truckmatch/internal/http/middleware"
	"truckmatch/internal/modules/trip"
	"truckmatch/internal/types"
)

type TripService interface {
	Create(ctx context.Context, cmd trip.CreateCommand) (*trip.TripRoute, error)
	UpdateStatus(ctx context.Context, cmd trip.UpdateStatusCommand) (*trip.TripRoute, error)
	Update(ctx context.Context, cmd trip.UpdateCommand) (*trip.TripRoute, error)
	Delete(ctx context.Context, id types.ID) error
	Get(ctx context.Context, id types.ID) (*trip.TripRoute, error)
	History(ctx context.Context, id types.ID) ([]trip.Event, error)
	List(ctx context.Context, f trip.ListFilter) ([]trip.TripRoute, int, error)
	Statistics(ctx context.Context, f trip.StatsFilter) (trip.Statistics, error)
	AddEvent(ctx context.Context, cmd trip.AddEventCommand) (*trip.Event, error)
}

type TripHandler struct {
	trips TripService
	log   *slog.Logger
}

func NewTripHandler(svc TripService, log *slog.Logger) *TripHandler {
	return &TripHandler{trips: svc, log: log}
}

// Zero estimates are left for the route estimator to fill.
type createTripReq struct {
	Origin                 locationReq    `json:"origin"`
	Destination            locationReq    `json:"destination"`
	EstimatedDistanceKm    float64        `json:"estimated_distance_km" binding:"omitempty,min=0.1"`
	EstimatedDurationHours float64        `json:"estimated_duration_hours" binding:"omitempty,min=0.1"`
	DriverID               string         `json:"driver_id" binding:"required,uuid"`
	UnitID                 string         `json:"unit_id" binding:"required,uuid"`
	OrderID                string         `json:"order_id" binding:"omitempty,uuid"`
	Metadata               types.Metadata `json:"metadata"`
	Notes                  string         `json:"notes" binding:"max=2000"`
}

type updateTripStatusReq struct {
	Status   string       `json:"status" binding:"required,oneof=created assigned in_progress arrived_at_destination completed cancelled"`
	Location *locationReq `json:"location"`
	Notes    string       `json:"notes" binding:"max=500"`
}

type updateTripReq struct {
	Origin                 *locationReq   `json:"origin"`
	Destination            *locationReq   `json:"destination"`
	EstimatedDistanceKm    *float64       `json:"estimated_distance_km" binding:"omitempty,min=0.1"`
	EstimatedDurationHours *float64       `json:"estimated_duration_hours" binding:"omitempty,min=0.1"`
	ActualDistanceKm       *float64       `json:"actual_distance_km" binding:"omitempty,min=0"`
	DriverID               *string        `json:"driver_id" binding:"omitempty,uuid"`
	UnitID                 *string        `json:"unit_id" binding:"omitempty,uuid"`
	Notes                  *string        `json:"notes" binding:"omitempty,max=2000"`
	Metadata               types.Metadata `json:"metadata"`
}

type addTripEventReq struct {
	Type        string         `json:"event_type" binding:"required,oneof=location_update note_added delay_reported incident_reported"`
	Location    *locationReq   `json:"location" binding:"required_if=Type location_update"`
	Description string         `json:"description" binding:"required_if=Type note_added,max=500"`
	Metadata    types.Metadata `json:"metadata"`
}

func actor(c *gin.Context) trip.Actor {
	return trip.Actor{ID: middleware.CallerUID(c), Role: middleware.CallerRole(c)}
}

func idPtr(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.trips.Create(c.Request.Context(), trip.CreateCommand{
		Origin:                 req.Origin.toLocation(),
		Destination:            req.Destination.toLocation(),
		EstimatedDistanceKm:    req.EstimatedDistanceKm,
		EstimatedDurationHours: req.EstimatedDurationHours,
		DriverID:               types.ID(req.DriverID),
		UnitID:                 types.ID(req.UnitID),
		OrderID:                types.IDPtr(types.ID(req.OrderID)),
		Metadata:               req.Metadata,
		Notes:                  req.Notes,
		Actor:                  actor(c),
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, t)
}

func (h *TripHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateTripStatusReq
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.trips.UpdateStatus(c.Request.Context(), trip.UpdateStatusCommand{
		TripID:   id,
		Status:   trip.Status(req.Status),
		Location: req.Location.toLocationPtr(),
		Notes:    req.Notes,
		Actor:    actor(c),
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *TripHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateTripReq
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.trips.Update(c.Request.Context(), trip.UpdateCommand{
		TripID:                 id,
		Origin:                 req.Origin.toLocationPtr(),
		Destination:            req.Destination.toLocationPtr(),
		EstimatedDistanceKm:    req.EstimatedDistanceKm,
		EstimatedDurationHours: req.EstimatedDurationHours,
		ActualDistanceKm:       req.ActualDistanceKm,
		DriverID:               idPtr(req.DriverID),
		UnitID:                 idPtr(req.UnitID),
		Notes:                  req.Notes,
		Metadata:               req.Metadata,
		Actor:                  actor(c),
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

// AddEvent appends a location update, note, delay or incident to the trip history.
func (h *TripHandler) AddEvent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req addTripEventReq
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.trips.AddEvent(c.Request.Context(), trip.AddEventCommand{
		TripID:      id,
		Type:        trip.EventType(req.Type),
		Location:    req.Location.toLocationPtr(),
		Description: req.Description,
		Metadata:    req.Metadata,
		Actor:       actor(c),
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, e)
}

func (h *TripHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.trips.Delete(c.Request.Context(), id); err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TripHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := h.trips.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *TripHandler) History(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	events, err := h.trips.History(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	if events == nil {
		events = []trip.Event{}
	}
	writeJSON(c, http.StatusOK, gin.H{"data": events})
}

func (h *TripHandler) List(c *gin.Context) {
	from, ok := timeQuery(c, "created_from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "created_to")
	if !ok {
		return
	}
	page, limit := paging(c)
	trips, total, err := h.trips.List(c.Request.Context(), trip.ListFilter{
		Status:      trip.Status(c.Query("status")),
		DriverID:    types.ID(c.Query("driver_id")),
		UnitID:      types.ID(c.Query("unit_id")),
		OrderID:     types.ID(c.Query("order_id")),
		CreatedFrom: from,
		CreatedTo:   to,
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	if trips == nil {
		trips = []trip.TripRoute{}
	}
	writeJSON(c, http.StatusOK, pageResponse{Data: trips, Page: page, Limit: limit, Total: total})
}

func (h *TripHandler) Statistics(c *gin.Context) {
	from, ok := timeQuery(c, "created_from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "created_to")
	if !ok {
		return
	}
	st, err := h.trips.Statistics(c.Request.Context(), trip.StatsFilter{
		CreatedFrom: from,
		CreatedTo:   to,
		DriverID:    types.ID(c.Query("driver_id")),
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}
