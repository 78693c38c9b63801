// README: Per-state entry effects: the timestamps, duration and order cascade applied when a trip enters a status.
package trip

import (
	"math"
	"time"

	"truckmatch/internal/modules/order"
)

// entry describes what entering a status does to a trip and its linked order.
type entry struct {
	apply func(t *TripRoute, now time.Time, notes string)
	// cascade is the order status a linked order takes, if any.
	cascade order.Status
}

// stampOnce sets a first-entry timestamp. Re-entering the status keeps the original value.
func stampOnce(field **time.Time, now time.Time) {
	if *field == nil {
		v := now
		*field = &v
	}
}

var entries = map[Status]entry{
	StatusInProgress: {
		apply: func(t *TripRoute, now time.Time, _ string) { stampOnce(&t.StartedAt, now) },
	},
	StatusArrivedAtDestination: {
		apply: func(t *TripRoute, now time.Time, _ string) { stampOnce(&t.ArrivedAt, now) },
	},
	StatusCompleted: {
		apply: func(t *TripRoute, now time.Time, _ string) {
			v := now
			t.CompletedAt = &v
			if t.StartedAt != nil {
				hours := roundTo2(now.Sub(*t.StartedAt).Hours())
				t.ActualDurationHours = &hours
			}
		},
		cascade: order.StatusCompleted,
	},
	StatusCancelled: {
		apply: func(t *TripRoute, now time.Time, notes string) {
			v := now
			t.CancelledAt = &v
			reason := notes
			if reason == "" {
				reason = DefaultCancellationReason
			}
			t.CancellationReason = &reason
		},
	},
}

// enter moves t into status to and returns the order status to cascade ("" for none).
func enter(t *TripRoute, to Status, now time.Time, notes string) order.Status {
	t.Status = to
	t.UpdatedAt = now
	e, ok := entries[to]
	if !ok {
		return ""
	}
	if e.apply != nil {
		e.apply(t, now, notes)
	}
	if t.OrderID == nil {
		return ""
	}
	return e.cascade
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
