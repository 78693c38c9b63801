// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"truckmatch/internal/http/handlers"
	"truckmatch/internal/http/middleware"
	"truckmatch/internal/infra"
)

type ServerDeps struct {
	Drivers     handlers.DriverService
	Units       handlers.UnitService
	Documents   handlers.DocumentService
	Orders      handlers.OrderService
	Trips       handlers.TripService
	Assignments handlers.AssignmentService
	Tracking    handlers.TrackingService
	// Feed is optional; without it the trip stream answers 503.
	Feed     handlers.TripFeed
	Verifier infra.TokenVerifier
	Log      *slog.Logger
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(s.deps.Log), middleware.Logging(s.deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(s.deps.Verifier))
	dispatch := middleware.RequireRole("admin", "dispatcher")
	field := middleware.RequireRole("admin", "dispatcher", "driver")

	drivers := handlers.NewDriverHandler(s.deps.Drivers, s.deps.Log)
	api.POST("/drivers", dispatch, drivers.Register)
	api.GET("/drivers/:id", drivers.Get)
	api.PATCH("/drivers/:id/status", dispatch, drivers.SetStatus)

	units := handlers.NewUnitHandler(s.deps.Units, s.deps.Log)
	api.POST("/units", dispatch, units.Register)
	api.GET("/units/:id", units.Get)
	api.PATCH("/units/:id/status", dispatch, units.SetStatus)
	api.PUT("/units/:id/assign-driver/:driverId", dispatch, units.AssignDriver)
	api.PUT("/units/:id/unassign-driver", dispatch, units.UnassignDriver)

	docs := handlers.NewDocumentHandler(s.deps.Documents, s.deps.Log)
	api.POST("/documents", dispatch, docs.Attach)
	api.GET("/documents", docs.List)
	api.PATCH("/documents/:id/status", dispatch, docs.SetStatus)

	orders := handlers.NewOrderHandler(s.deps.Orders, s.deps.Log)
	api.POST("/orders", dispatch, orders.Create)
	api.GET("/orders", orders.List)
	api.GET("/orders/:id", orders.Get)
	api.POST("/orders/:id/cancel", dispatch, orders.Cancel)

	trips := handlers.NewTripHandler(s.deps.Trips, s.deps.Log)
	stream := handlers.NewStreamHandler(s.deps.Trips, s.deps.Feed, s.deps.Log)
	api.POST("/trip-routes", dispatch, trips.Create)
	api.GET("/trip-routes", trips.List)
	api.GET("/trip-routes/statistics", trips.Statistics)
	api.GET("/trip-routes/:id", trips.Get)
	api.PATCH("/trip-routes/:id", dispatch, trips.Update)
	api.DELETE("/trip-routes/:id", dispatch, trips.Delete)
	api.POST("/trip-routes/:id/status", field, trips.UpdateStatus)
	api.POST("/trip-routes/:id/events", field, trips.AddEvent)
	api.GET("/trip-routes/:id/history", trips.History)
	api.GET("/trip-routes/:id/stream", stream.Events)

	assignments := handlers.NewAssignmentHandler(s.deps.Assignments, s.deps.Log)
	api.POST("/assignments", dispatch, assignments.Create)
	api.GET("/assignments", assignments.List)
	api.GET("/assignments/:id", assignments.Get)
	api.PATCH("/assignments/:id", dispatch, assignments.Update)
	api.POST("/assignments/:id/revalidate", dispatch, assignments.Revalidate)
	api.DELETE("/assignments/:id", dispatch, assignments.Delete)

	tracking := handlers.NewTrackingHandler(s.deps.Tracking, s.deps.Log)
	api.POST("/tracking/location", field, tracking.Report)
	api.GET("/tracking/trips/:id/current", tracking.CurrentForTrip)
	api.GET("/tracking/trips/:id/breadcrumbs", tracking.Breadcrumbs)
	api.GET("/tracking/units/:id/current", tracking.CurrentForUnit)
	api.GET("/tracking/nearby", tracking.Nearby)

	return r
}
