// README: Driver handlers for register, get and status changes.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"truckmatch/internal/modules/driver"
	"truckmatch/internal/types"
)

type DriverService interface {
	Register(ctx context.Context, cmd driver.RegisterCommand) (*driver.Driver, error)
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
	SetStatus(ctx context.Context, id types.ID, status driver.Status) (*driver.Driver, error)
}

type DriverHandler struct {
	drivers DriverService
	log     *slog.Logger
}

func NewDriverHandler(svc DriverService, log *slog.Logger) *DriverHandler {
	return &DriverHandler{drivers: svc, log: log}
}

type registerDriverReq struct {
	Name                  string    `json:"name" binding:"required,max=100"`
	License               string    `json:"license" binding:"required,max=50"`
	LicenseExpirationDate time.Time `json:"license_expiration_date" binding:"required"`
	Status                string    `json:"status" binding:"omitempty,oneof=active inactive under_review"`
	Phone                 string    `json:"phone" binding:"max=30"`
	Email                 string    `json:"email" binding:"omitempty,email"`
}

// statusReq is shared by drivers, units and documents; each service checks its own enum.
type statusReq struct {
	Status string `json:"status" binding:"required"`
}

func (h *DriverHandler) Register(c *gin.Context) {
	var req registerDriverReq
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.drivers.Register(c.Request.Context(), driver.RegisterCommand{
		Name:                  req.Name,
		License:               req.License,
		LicenseExpirationDate: req.LicenseExpirationDate,
		Status:                driver.Status(req.Status),
		Phone:                 req.Phone,
		Email:                 req.Email,
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, d)
}

func (h *DriverHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	d, err := h.drivers.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DriverHandler) SetStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusReq
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.drivers.SetStatus(c.Request.Context(), id, driver.Status(req.Status))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}
