// README: Websocket stream of live trip events.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"truckmatch/internal/modules/trip"
	"truckmatch/internal/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type TripFeed interface {
	Subscribe(ctx context.Context, tripID types.ID) (<-chan trip.Event, error)
}

type StreamHandler struct {
	trips    TripService
	feed     TripFeed
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewStreamHandler(trips TripService, feed TripFeed, log *slog.Logger) *StreamHandler {
	return &StreamHandler{
		trips: trips,
		feed:  feed,
		log:   log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Events upgrades the connection and forwards every committed event of the trip until either side goes away.
func (h *StreamHandler) Events(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if h.feed == nil {
		writeError(c, http.StatusServiceUnavailable, "live feed disabled")
		return
	}
	if _, err := h.trips.Get(c.Request.Context(), id); err != nil {
		writeServiceError(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "trip_id", id, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := h.feed.Subscribe(ctx, id)
	if err != nil {
		h.log.Error("trip feed subscribe failed", "trip_id", id, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"),
			time.Now().Add(writeWait))
		return
	}

	// The reader only handles control frames; any read error ends the stream.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				h.log.Debug("trip stream write failed", "trip_id", id, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
