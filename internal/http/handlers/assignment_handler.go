// README: Assignment handlers: create with eligibility check, lifecycle updates, revalidation.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"truckmatch/internal/modules/assignment"
	"truckmatch/internal/types"
)

type AssignmentService interface {
	Create(ctx context.Context, cmd assignment.CreateCommand) (*assignment.Assignment, error)
	Update(ctx context.Context, cmd assignment.UpdateCommand) (*assignment.Assignment, error)
	Revalidate(ctx context.Context, id types.ID) (*assignment.Assignment, error)
	Delete(ctx context.Context, id types.ID) error
	Get(ctx context.Context, id types.ID) (*assignment.Assignment, error)
	List(ctx context.Context, f assignment.ListFilter) ([]assignment.Assignment, int, error)
}

type AssignmentHandler struct {
	assignments AssignmentService
	log         *slog.Logger
}

func NewAssignmentHandler(svc AssignmentService, log *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{assignments: svc, log: log}
}

type createAssignmentReq struct {
	OrderID  string `json:"order_id" binding:"required,uuid"`
	DriverID string `json:"driver_id" binding:"required,uuid"`
	UnitID   string `json:"unit_id" binding:"required,uuid"`
	Notes    string `json:"notes" binding:"max=2000"`
}

type updateAssignmentReq struct {
	Status *string `json:"status" binding:"omitempty,oneof=pending ready started completed cancelled"`
	Notes  *string `json:"notes" binding:"omitempty,max=2000"`
}

func (h *AssignmentHandler) Create(c *gin.Context) {
	var req createAssignmentReq
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.assignments.Create(c.Request.Context(), assignment.CreateCommand{
		OrderID:  types.ID(req.OrderID),
		DriverID: types.ID(req.DriverID),
		UnitID:   types.ID(req.UnitID),
		Notes:    req.Notes,
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, a)
}

func (h *AssignmentHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateAssignmentReq
	if !bindJSON(c, &req) {
		return
	}
	cmd := assignment.UpdateCommand{ID: id, Notes: req.Notes}
	if req.Status != nil {
		st := assignment.Status(*req.Status)
		cmd.Status = &st
	}
	a, err := h.assignments.Update(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

func (h *AssignmentHandler) Revalidate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.assignments.Revalidate(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

func (h *AssignmentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.assignments.Delete(c.Request.Context(), id); err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AssignmentHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.assignments.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

func (h *AssignmentHandler) List(c *gin.Context) {
	page, limit := paging(c)
	items, total, err := h.assignments.List(c.Request.Context(), assignment.ListFilter{
		Status:   assignment.Status(c.Query("status")),
		DriverID: types.ID(c.Query("driver_id")),
		UnitID:   types.ID(c.Query("unit_id")),
		OrderID:  types.ID(c.Query("order_id")),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	if items == nil {
		items = []assignment.Assignment{}
	}
	writeJSON(c, http.StatusOK, pageResponse{Data: items, Page: page, Limit: limit, Total: total})
}
