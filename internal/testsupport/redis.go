package testsupport

import (
	"context"
	"testing"
	"time"

	"shrinkbot/internal/adapters/config"
	redisclient "shrinkbot/internal/adapters/redis"
)

// KeyPattern matches every key the service writes
const KeyPattern = "shrinkbot:*"

// NewRedisClient connects through the production client and removes the service's keys
// before and after the test. The test is skipped when Redis does not answer.
func NewRedisClient(t *testing.T, cfg config.RedisConfig) *redisclient.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := redisclient.NewClient(ctx, cfg)
	if err != nil {
		t.Skipf("redis unavailable at %s: %v", cfg.Addr(), err)
	}

	purge(t, client)
	t.Cleanup(func() {
		purge(t, client)
		_ = client.Close()
	})

	return client
}

func purge(t *testing.T, client *redisclient.Client) {
	t.Helper()

	ctx := context.Background()
	iter := client.Client().Scan(ctx, 0, KeyPattern, 200).Iterator()
	for iter.Next(ctx) {
		if err := client.Client().Del(ctx, iter.Val()).Err(); err != nil {
			t.Fatalf("failed to delete %s: %v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		t.Fatalf("failed to scan test keys: %v", err)
	}
}
