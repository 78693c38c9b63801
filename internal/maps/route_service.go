package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"truckmatch/internal/types"
)

var ErrNoRoute = errors.New("no route found")

// directionsClient is the part of *maps.Client the estimator calls.
type directionsClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// RouteService estimates trip distance and duration with the Google Directions API.
type RouteService struct {
	client directionsClient
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Estimate returns the driving distance in km and duration in hours of the first route,
// summed over its legs.
func (s *RouteService) Estimate(ctx context.Context, origin, destination types.Location) (float64, float64, error) {
	r := &maps.DirectionsRequest{
		Origin:      origin.Query(),
		Destination: destination.Query(),
		Mode:        maps.TravelModeDriving,
		Avoid:       []maps.Avoid{maps.AvoidFerries},
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, 0, fmt.Errorf("maps api error: %w", err)
	}
	return firstRouteTotals(routes)
}

func firstRouteTotals(routes []maps.Route) (float64, float64, error) {
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, 0, ErrNoRoute
	}
	var meters int
	var hours float64
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
		hours += leg.Duration.Hours()
	}
	return float64(meters) / 1000, hours, nil
}
