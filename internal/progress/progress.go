// Package progress publishes coarse task progress for status polling.
// Writes are best effort: a failed publish is logged and never fails the
// task that produced it.
package progress

import (
	"context"
	"strings"
	"time"
)

// Entries expire on their own so abandoned tasks do not accumulate.
const defaultTTL = 10 * time.Minute

// Channel stores the latest progress percentage per task.
type Channel interface {
	// Set records percent (0-100) for taskID, refreshing the entry TTL.
	Set(ctx context.Context, taskID string, percent int) error
	// Get returns the recorded percent and whether an entry exists.
	Get(ctx context.Context, taskID string) (int, bool, error)
	// Close releases any underlying resources.
	Close() error
}

// NewChannel returns a redis-backed channel when redisURL is set, otherwise
// an in-process one.
func NewChannel(redisURL string) (Channel, error) {
	if strings.TrimSpace(redisURL) == "" {
		return NewMemoryChannel(), nil
	}
	return NewRedisChannel(redisURL)
}

func progressKey(taskID string) string {
	return "vftask:" + taskID + ":progress"
}

func clampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
