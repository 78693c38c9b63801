// README: Document handlers; metadata only, the file itself lives at the caller-supplied url.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"truckmatch/internal/modules/document"
	"truckmatch/internal/types"
)

type DocumentService interface {
	Attach(ctx context.Context, cmd document.AttachCommand) (*document.Document, error)
	ListByOwner(ctx context.Context, owner document.Owner) ([]document.Document, error)
	SetStatus(ctx context.Context, id types.ID, status document.Status) (*document.Document, error)
}

type DocumentHandler struct {
	documents DocumentService
	log       *slog.Logger
}

func NewDocumentHandler(svc DocumentService, log *slog.Logger) *DocumentHandler {
	return &DocumentHandler{documents: svc, log: log}
}

type attachDocumentReq struct {
	OwnerType      string     `json:"owner_type" binding:"required,oneof=driver unit"`
	OwnerID        string     `json:"owner_id" binding:"required,uuid"`
	Type           string     `json:"type" binding:"required"`
	URL            string     `json:"url" binding:"required,url"`
	ExpirationDate *time.Time `json:"expiration_date"`
	Status         string     `json:"status" binding:"omitempty,oneof=valid expired rejected pending_review"`
}

func (h *DocumentHandler) Attach(c *gin.Context) {
	var req attachDocumentReq
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.documents.Attach(c.Request.Context(), document.AttachCommand{
		Owner:          document.Owner{Kind: document.OwnerKind(req.OwnerType), ID: types.ID(req.OwnerID)},
		Type:           document.Type(req.Type),
		URL:            req.URL,
		ExpirationDate: req.ExpirationDate,
		Status:         document.Status(req.Status),
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, d)
}

func (h *DocumentHandler) List(c *gin.Context) {
	owner := document.Owner{Kind: document.OwnerKind(c.Query("owner_type")), ID: types.ID(c.Query("owner_id"))}
	docs, err := h.documents.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"data": docs})
}

func (h *DocumentHandler) SetStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusReq
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.documents.SetStatus(c.Request.Context(), id, document.Status(req.Status))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}
