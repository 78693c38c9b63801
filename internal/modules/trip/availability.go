// README: Availability checks for drivers and units; read-only and run on the caller's transaction.
package trip

import (
	"context"

	"truckmatch/internal/types"
)

// Availability reports whether a driver or unit is free of trips in Statuses.
type Availability struct {
	Statuses []Status
}

// NewAvailability defaults to the busy statuses.
func NewAvailability(statuses ...Status) Availability {
	if len(statuses) == 0 {
		statuses = BusyStatuses
	}
	return Availability{Statuses: statuses}
}

// DriverAvailable ignores excludeTripID so a trip never conflicts with itself.
func (a Availability) DriverAvailable(ctx context.Context, r HolderReader, driverID, excludeTripID types.ID) (bool, error) {
	held, err := r.HasTrip(ctx, HolderQuery{DriverID: driverID, Statuses: a.Statuses, ExcludeID: excludeTripID})
	if err != nil {
		return false, err
	}
	return !held, nil
}

func (a Availability) UnitAvailable(ctx context.Context, r HolderReader, unitID, excludeTripID types.ID) (bool, error) {
	held, err := r.HasTrip(ctx, HolderQuery{UnitID: unitID, Statuses: a.Statuses, ExcludeID: excludeTripID})
	if err != nil {
		return false, err
	}
	return !held, nil
}
