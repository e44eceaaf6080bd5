// Package redis mirrors the latest courier positions of active orders into
// Redis so that read-side services can serve them without the dispatcher.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

const keyPrefix = "dispatch:tracking:"

func locationsKey(orderID string) string { return keyPrefix + orderID + ":locations" }

// LocationMirror keeps one hash per order: courier id -> latest sample JSON.
// The caller owns the Redis client lifecycle.
type LocationMirror struct {
	client goredis.Cmdable
	ttl    time.Duration
}

// NewLocationMirror creates a mirror whose keys expire ttl after the last write.
func NewLocationMirror(client goredis.Cmdable, ttl time.Duration) *LocationMirror {
	return &LocationMirror{client: client, ttl: ttl}
}

// Ping verifies the Redis connection is alive.
func (m *LocationMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Publish applies ev to the mirror: location updates overwrite the courier's
// entry, terminal statuses drop the whole order.
func (m *LocationMirror) Publish(ctx context.Context, ev domain.DispatchEvent) error {
	switch ev.Type {
	case domain.EventLocationUpdated:
		if ev.Location == nil {
			return apperr.Permanent(fmt.Errorf("%s without location: %w", ev.Type, apperr.ErrInvalid))
		}
		return m.save(ctx, *ev.Location)
	case domain.EventStatusUpdated:
		if ev.Status == nil || !ev.Status.Status.Terminal() {
			return nil
		}
		if err := m.client.Del(ctx, locationsKey(ev.OrderID)).Err(); err != nil {
			return fmt.Errorf("dispatch/redis: drop locations %s: %w", ev.OrderID, err)
		}
		return nil
	default:
		return nil
	}
}

// The relay delivers events of one order in order, so the last write is the
// newest sample already accepted by the broadcaster.
func (m *LocationMirror) save(ctx context.Context, s domain.LocationSample) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return apperr.Permanent(fmt.Errorf("dispatch/redis: marshal sample: %w", err))
	}
	key := locationsKey(s.OrderID)

	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, key, strconv.FormatInt(s.CourierID, 10), raw)
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dispatch/redis: save location %s/%d: %w", s.OrderID, s.CourierID, err)
	}
	return nil
}

// Latest returns the mirrored samples of orderID ordered by timestamp.
func (m *LocationMirror) Latest(ctx context.Context, orderID string) ([]domain.LocationSample, error) {
	vals, err := m.client.HGetAll(ctx, locationsKey(orderID)).Result()
	if err != nil {
		return nil, fmt.Errorf("dispatch/redis: latest %s: %w", orderID, err)
	}
	if len(vals) == 0 {
		return nil, apperr.ErrOrderNotFound
	}
	out := make([]domain.LocationSample, 0, len(vals))
	for field, raw := range vals {
		var s domain.LocationSample
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("dispatch/redis: decode %s/%s: %w", orderID, field, err)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
