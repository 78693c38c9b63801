// README: Base handler utilities (JSON helpers, error mapping, paging).
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"truckmatch/internal/types"
)

type errorResponse struct {
	Error              string    `json:"error"`
	AllowedTransitions *[]string `json:"allowed_transitions,omitempty"`
	Errors             []string  `json:"errors,omitempty"`
}

type pageResponse struct {
	Data  any `json:"data"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps domain error kinds to status codes. Unknown errors are logged and hidden.
func writeServiceError(c *gin.Context, log *slog.Logger, err error) {
	var (
		te *types.TransitionError
		ve *types.ValidationErrors
		de *types.Error
	)
	switch {
	case errors.As(err, &te):
		allowed := te.Allowed
		if allowed == nil {
			allowed = []string{}
		}
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: te.Error(), AllowedTransitions: &allowed})
	case errors.As(err, &ve):
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: ve.Msg, Errors: ve.Problems})
	case errors.As(err, &de):
		writeError(c, statusFor(de.Kind), de.Msg)
	default:
		log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func statusFor(kind error) int {
	switch kind {
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrConflict:
		return http.StatusConflict
	case types.ErrInvalidState, types.ErrInvalidTransition, types.ErrValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// pathID reads :id and rejects malformed ids.
func pathID(c *gin.Context) (types.ID, bool) {
	id := types.ID(c.Param("id"))
	if !id.Valid() {
		writeError(c, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return id, true
}

func paging(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page"))
	limit, _ = strconv.Atoi(c.Query("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

// timeQuery parses an optional RFC 3339 or YYYY-MM-DD query parameter.
func timeQuery(c *gin.Context, key string) (*time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	writeError(c, http.StatusBadRequest, key+" must be RFC 3339 or YYYY-MM-DD")
	return nil, false
}
