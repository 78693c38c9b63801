// README: Unit handlers for register, get, status changes and driver assignment.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"truckmatch/internal/modules/unit"
	"truckmatch/internal/types"
)

type UnitService interface {
	Register(ctx context.Context, cmd unit.RegisterCommand) (*unit.Unit, error)
	Get(ctx context.Context, id types.ID) (*unit.Unit, error)
	SetStatus(ctx context.Context, id types.ID, status unit.Status) (*unit.Unit, error)
	AssignDriver(ctx context.Context, id, driverID types.ID) (*unit.Unit, error)
	UnassignDriver(ctx context.Context, id types.ID) (*unit.Unit, error)
}

type UnitHandler struct {
	units UnitService
	log   *slog.Logger
}

func NewUnitHandler(svc UnitService, log *slog.Logger) *UnitHandler {
	return &UnitHandler{units: svc, log: log}
}

type registerUnitReq struct {
	PlateNumber  string  `json:"plate_number" binding:"required,max=20"`
	Type         string  `json:"type" binding:"required,oneof=truck trailer van pickup"`
	Capacity     float64 `json:"capacity" binding:"min=0"`
	CapacityUnit string  `json:"capacity_unit" binding:"omitempty,oneof=tons kg m3"`
	Status       string  `json:"status" binding:"omitempty,oneof=active inactive maintenance assigned"`
	DriverID     string  `json:"driver_id" binding:"omitempty,uuid"`
}

func (h *UnitHandler) Register(c *gin.Context) {
	var req registerUnitReq
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.units.Register(c.Request.Context(), unit.RegisterCommand{
		PlateNumber:  req.PlateNumber,
		Type:         unit.Type(req.Type),
		Capacity:     req.Capacity,
		CapacityUnit: unit.CapacityUnit(req.CapacityUnit),
		Status:       unit.Status(req.Status),
		DriverID:     types.IDPtr(types.ID(req.DriverID)),
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, u)
}

func (h *UnitHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.units.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, u)
}

func (h *UnitHandler) SetStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusReq
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.units.SetStatus(c.Request.Context(), id, unit.Status(req.Status))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, u)
}

func (h *UnitHandler) AssignDriver(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	driverID := types.ID(c.Param("driverId"))
	if !driverID.Valid() {
		writeError(c, http.StatusBadRequest, "invalid driver id")
		return
	}
	u, err := h.units.AssignDriver(c.Request.Context(), id, driverID)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, u)
}

func (h *UnitHandler) UnassignDriver(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.units.UnassignDriver(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, u)
}
