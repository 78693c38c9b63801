// README: Order handlers for create, list, get and cancel.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"truckmatch/internal/modules/order"
	"truckmatch/internal/types"
)

type OrderService interface {
	Create(ctx context.Context, cmd order.CreateCommand) (*order.Order, error)
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	List(ctx context.Context, f order.ListFilter) ([]order.Order, int, error)
	Cancel(ctx context.Context, id types.ID) (*order.Order, error)
}

type OrderHandler struct {
	orders OrderService
	log    *slog.Logger
}

func NewOrderHandler(svc OrderService, log *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: svc, log: log}
}

type createOrderReq struct {
	Origin          locationReq `json:"origin"`
	Destination     locationReq `json:"destination"`
	CargoWeight     float64     `json:"cargo_weight" binding:"min=0"`
	CargoWeightUnit string      `json:"cargo_weight_unit" binding:"omitempty,oneof=tons kg lbs"`
	ClientID        string      `json:"client_id" binding:"omitempty,uuid"`
	Rate            *moneyReq   `json:"rate"`
	Notes           string      `json:"notes" binding:"max=2000"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.orders.Create(c.Request.Context(), order.CreateCommand{
		Origin:          req.Origin.toLocation(),
		Destination:     req.Destination.toLocation(),
		CargoWeight:     req.CargoWeight,
		CargoWeightUnit: order.WeightUnit(req.CargoWeightUnit),
		ClientID:        types.IDPtr(types.ID(req.ClientID)),
		Rate:            req.Rate.toMoney(),
		Notes:           req.Notes,
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

func (h *OrderHandler) List(c *gin.Context) {
	page, limit := paging(c)
	orders, total, err := h.orders.List(c.Request.Context(), order.ListFilter{
		Status: order.Status(c.Query("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, pageResponse{Data: orders, Page: page, Limit: limit, Total: total})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.orders.Cancel(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}
