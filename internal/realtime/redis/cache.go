// Package redis provides a Redis-backed snapshot cache for the realtime hub.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "statusroom:snapshot:"

// Hash fields of a cache entry.
const (
	fieldData     = "data"
	fieldHorizon  = "horizon"
	fieldInFlight = "in_flight"
)

// setScript writes a snapshot unless the entry already holds a newer one.
// The version fields outlive Invalidate so a late writer cannot roll the
// entry back.
var setScript = redis.NewScript(`
local current = redis.call('HMGET', KEYS[1], 'horizon', 'in_flight')
if current[1] then
	local horizon = tonumber(current[1])
	local inFlight = tonumber(current[2])
	local nextHorizon = tonumber(ARGV[1])
	local nextInFlight = tonumber(ARGV[2])
	if nextHorizon < horizon or (nextHorizon == horizon and nextInFlight > inFlight) then
		return 0
	end
end
redis.call('HSET', KEYS[1], 'horizon', ARGV[1], 'in_flight', ARGV[2], 'data', ARGV[3])
if tonumber(ARGV[4]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[4])
end
return 1
`)

// Cache stores organization snapshots in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a snapshot cache. A zero ttl keeps entries until overwritten.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Connect creates a client from a redis:// URL and verifies it answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Get returns the cached snapshot, or nil on a miss.
func (c *Cache) Get(ctx context.Context, organizationID string) (*domain.Snapshot, error) {
	values, err := c.client.HMGet(ctx, key(organizationID), fieldData, fieldHorizon, fieldInFlight).Result()
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	data, ok := values[0].(string)
	if !ok {
		return nil, nil
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	snapshot.Version.Horizon = parseInt(values[1])
	snapshot.Version.InFlight = parseInt(values[2])
	return &snapshot, nil
}

// Set stores snapshot under its organization. A snapshot older than the
// cached one is discarded without error.
func (c *Cache) Set(ctx context.Context, snapshot *domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	err = setScript.Run(ctx, c.client, []string{key(snapshot.OrganizationID)},
		snapshot.Version.Horizon,
		snapshot.Version.InFlight,
		data,
		c.ttl.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot, keeping its version.
func (c *Cache) Invalidate(ctx context.Context, organizationID string) error {
	if err := c.client.HDel(ctx, key(organizationID), fieldData).Err(); err != nil {
		return fmt.Errorf("invalidate snapshot: %w", err)
	}
	return nil
}

func key(organizationID string) string {
	return keyPrefix + organizationID
}

func parseInt(value any) int64 {
	s, _ := value.(string)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
