package cooldown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore coordinates cooldowns across evaluator instances. The cooldown
// window is expressed as key TTL: SET NX either claims the window or fails,
// which makes the check-then-fire step atomic without extra locking.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{client: client}, nil
}

func cooldownKey(alertID string) string {
	return fmt.Sprintf("costpulse:alert_cooldown:%s", alertID)
}

func (s *RedisStore) TryAcquire(ctx context.Context, alertID string, cooldown time.Duration, now time.Time) (bool, error) {
	acquired, err := s.client.SetNX(ctx, cooldownKey(alertID), now.Format(time.RFC3339), cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("acquire cooldown for alert %s: %w", alertID, err)
	}
	return acquired, nil
}

func (s *RedisStore) Release(ctx context.Context, alertID string) error {
	if err := s.client.Del(ctx, cooldownKey(alertID)).Err(); err != nil {
		return fmt.Errorf("release cooldown for alert %s: %w", alertID, err)
	}
	return nil
}
