// README: Live unit positions in Redis; a GEO set for radius queries plus a per-unit JSON snapshot that expires.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"truckmatch/internal/types"
)

const unitGeoKey = "tracking:units"

func positionKey(unitID types.ID) string {
	return fmt.Sprintf("tracking:unit:%s:position", unitID)
}

type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore keeps each snapshot for ttl; zero keeps it until overwritten.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: rdb, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, p Position) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	pipe := s.redis.Pipeline()
	pipe.GeoAdd(ctx, unitGeoKey, &redis.GeoLocation{
		Name:      string(p.UnitID),
		Longitude: p.Coordinates.Lng,
		Latitude:  p.Coordinates.Lat,
	})
	pipe.Set(ctx, positionKey(p.UnitID), payload, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Current(ctx context.Context, unitID types.ID) (*Position, error) {
	raw, err := s.redis.Get(ctx, positionKey(unitID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoUnitPosition
	}
	if err != nil {
		return nil, err
	}
	var p Position
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode unit position: %w", err)
	}
	return &p, nil
}

// Nearby drops GEO members whose snapshot has expired and prunes them from the set.
func (s *RedisStore) Nearby(ctx context.Context, center types.Point, radiusKm float64, limit int) ([]NearbyUnit, error) {
	hits, err := s.redis.GeoSearchLocation(ctx, unitGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Lng,
			Latitude:   center.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []NearbyUnit{}, nil
	}

	keys := make([]string, len(hits))
	for i, h := range hits {
		keys[i] = positionKey(types.ID(h.Name))
	}
	snapshots, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]NearbyUnit, 0, len(hits))
	var stale []any
	for i, raw := range snapshots {
		str, ok := raw.(string)
		if !ok {
			stale = append(stale, hits[i].Name)
			continue
		}
		var p Position
		if err := json.Unmarshal([]byte(str), &p); err != nil {
			return nil, fmt.Errorf("decode unit position: %w", err)
		}
		out = append(out, NearbyUnit{Position: p, DistanceKm: hits[i].Dist})
	}
	if len(stale) > 0 {
		if err := s.redis.ZRem(ctx, unitGeoKey, stale...).Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
