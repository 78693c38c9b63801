// README: Event log writer; stamps and appends audit rows on the mutation's own transaction.
package trip

import (
	"context"

	"truckmatch/internal/clock"
	"truckmatch/internal/types"
)

const DefaultRole = "system"

type EventLog struct {
	clock clock.Clock
}

func NewEventLog(clk clock.Clock) *EventLog {
	return &EventLog{clock: clk}
}

// Append assigns the id and timestamp, fills defaults and writes e through w.
func (l *EventLog) Append(ctx context.Context, w EventWriter, e Event) (Event, error) {
	e.ID = types.NewID()
	e.Timestamp = l.clock.Now()
	if e.PerformedByRole == "" {
		e.PerformedByRole = DefaultRole
	}
	if e.Metadata == nil {
		e.Metadata = types.Metadata{}
	}
	if err := w.InsertEvent(ctx, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

func statusPtr(s Status) *Status { return &s }

func actorID(a Actor) *string {
	if a.ID == "" {
		return nil
	}
	id := a.ID
	return &id
}

func roleOr(a Actor, def string) string {
	if a.Role == "" {
		return def
	}
	return a.Role
}
