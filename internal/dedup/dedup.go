package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const reportKeyPrefix = "akash:report:"

// ReportKey returns the guard key for the report of day's UTC date.
func ReportKey(day time.Time) string {
	return reportKeyPrefix + day.UTC().Format("2006-01-02")
}

// MonthPattern matches the guard keys of every day in month's UTC month.
func MonthPattern(month time.Time) string {
	return reportKeyPrefix + month.UTC().Format("2006-01") + "-*"
}

// Deduplicator records which daily reports have been posted and the root id
// of each thread.
type Deduplicator struct {
	rdb *redis.Client
}

// New creates a Deduplicator backed by Redis.
func New(redisURL, password string) (*Deduplicator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Deduplicator{rdb: rdb}, nil
}

// Close shuts down the Redis connection.
func (d *Deduplicator) Close() error {
	return d.rdb.Close()
}

// Ping checks the Redis connection.
func (d *Deduplicator) Ping(ctx context.Context) error {
	return d.rdb.Ping(ctx).Err()
}

// AlreadySent reports whether key has been recorded. A Redis failure is
// returned to the caller together with true so a careless caller does not
// post twice.
func (d *Deduplicator) AlreadySent(ctx context.Context, key string) (bool, error) {
	exists, err := d.rdb.Exists(ctx, key).Result()
	if err != nil {
		return true, fmt.Errorf("check %s: %w", key, err)
	}
	return exists > 0, nil
}

// Lookup returns the value recorded under key.
func (d *Deduplicator) Lookup(ctx context.Context, key string) (string, bool, error) {
	v, err := d.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

// Record marks key as sent permanently (no expiry), storing value.
func (d *Deduplicator) Record(ctx context.Context, key, value string) error {
	if err := d.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Clear removes a key so that day's report can be posted again.
func (d *Deduplicator) Clear(ctx context.Context, key string) error {
	return d.rdb.Del(ctx, key).Err()
}

// ClearByPattern removes every key matching pattern, e.g. "akash:report:2025-03-*".
func (d *Deduplicator) ClearByPattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := d.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := d.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("delete %s: %w", pattern, err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}
