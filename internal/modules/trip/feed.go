// README: Live trip event feed on Redis pub/sub; events are published only after their transaction commits.
package trip

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"truckmatch/internal/types"
)

func feedChannel(tripID types.ID) string {
	return fmt.Sprintf("trip:%s:events", tripID)
}

type RedisFeed struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisFeed(rdb *redis.Client, log *slog.Logger) *RedisFeed {
	return &RedisFeed{rdb: rdb, log: log}
}

func (f *RedisFeed) Publish(ctx context.Context, events []Event) error {
	pipe := f.rdb.Pipeline()
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return err
		}
		pipe.Publish(ctx, feedChannel(e.TripRouteID), payload)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Subscribe streams a trip's events until ctx is done. The channel closes when the subscription ends.
func (f *RedisFeed) Subscribe(ctx context.Context, tripID types.ID) (<-chan Event, error) {
	sub := f.rdb.Subscribe(ctx, feedChannel(tripID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe trip feed: %w", err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					f.log.Warn("drop malformed trip event", "trip_id", tripID, "error", err)
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
