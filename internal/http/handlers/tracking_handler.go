// README: Tracking handlers; GPS reports, trip breadcrumbs and live unit positions.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"truckmatch/internal/modules/tracking"
	"truckmatch/internal/types"
)

type TrackingService interface {
	Report(ctx context.Context, cmd tracking.ReportCommand) (*tracking.Position, error)
	CurrentForTrip(ctx context.Context, tripID types.ID) (*tracking.Position, error)
	Breadcrumbs(ctx context.Context, tripID types.ID, limit int) ([]tracking.Position, error)
	CurrentForUnit(ctx context.Context, unitID types.ID) (*tracking.Position, error)
	Nearby(ctx context.Context, center types.Point, radiusKm float64, limit int) ([]tracking.NearbyUnit, error)
}

type TrackingHandler struct {
	tracking TrackingService
	log      *slog.Logger
}

func NewTrackingHandler(svc TrackingService, log *slog.Logger) *TrackingHandler {
	return &TrackingHandler{tracking: svc, log: log}
}

type reportLocationReq struct {
	TripRouteID string   `json:"trip_route_id" binding:"required,uuid"`
	Latitude    *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
	Address     string   `json:"address" binding:"max=500"`
	Speed       float64  `json:"speed" binding:"min=0"`
	Accuracy    float64  `json:"accuracy" binding:"min=0"`
}

func (h *TrackingHandler) Report(c *gin.Context) {
	var req reportLocationReq
	if !bindJSON(c, &req) {
		return
	}
	pos, err := h.tracking.Report(c.Request.Context(), tracking.ReportCommand{
		TripID:    types.ID(req.TripRouteID),
		Point:     types.Point{Lat: *req.Latitude, Lng: *req.Longitude},
		Address:   req.Address,
		SpeedKmh:  req.Speed,
		AccuracyM: req.Accuracy,
		Actor:     actor(c),
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, pos)
}

func (h *TrackingHandler) CurrentForTrip(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	pos, err := h.tracking.CurrentForTrip(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, pos)
}

func (h *TrackingHandler) Breadcrumbs(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	crumbs, err := h.tracking.Breadcrumbs(c.Request.Context(), id, limit)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, crumbs)
}

func (h *TrackingHandler) CurrentForUnit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	pos, err := h.tracking.CurrentForUnit(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, pos)
}

type nearbyQuery struct {
	Lat      *float64 `form:"lat" binding:"required"`
	Lng      *float64 `form:"lng" binding:"required"`
	RadiusKm float64  `form:"radius_km" binding:"required"`
	Limit    int      `form:"limit"`
}

func (h *TrackingHandler) Nearby(c *gin.Context) {
	var q nearbyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "lat, lng and radius_km are required numbers")
		return
	}
	units, err := h.tracking.Nearby(c.Request.Context(), types.Point{Lat: *q.Lat, Lng: *q.Lng}, q.RadiusKm, q.Limit)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, units)
}
