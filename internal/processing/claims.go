package processing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Claimer hands out short-lived exclusive claims on a video so that concurrent
// deliveries of the same notification do not both copy its objects.
type Claimer interface {
	// Claim returns ok=false when someone else holds the claim.
	Claim(ctx context.Context, videoID string) (token string, ok bool, err error)
	// Release drops the claim if token still owns it.
	Release(ctx context.Context, videoID, token string) error
}

const claimKeyPrefix = "videohub:processing:"

// releaseScript deletes the key only while it still holds our token, so a claim
// that expired and was taken over is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClaimer stores claims as Redis keys with a TTL.
type RedisClaimer struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisClaimer(client redis.Cmdable, ttl time.Duration) *RedisClaimer {
	return &RedisClaimer{client: client, ttl: ttl}
}

func (c *RedisClaimer) Claim(ctx context.Context, videoID string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, claimKeyPrefix+videoID, token, c.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim video %s: %w", videoID, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (c *RedisClaimer) Release(ctx context.Context, videoID, token string) error {
	if err := releaseScript.Run(ctx, c.client, []string{claimKeyPrefix + videoID}, token).Err(); err != nil {
		return fmt.Errorf("release video %s: %w", videoID, err)
	}
	return nil
}

// MemoryClaimer keeps claims in process memory. It only protects a single
// instance and is meant for development and tests.
type MemoryClaimer struct {
	mu     sync.Mutex
	claims map[string]string
}

func NewMemoryClaimer() *MemoryClaimer {
	return &MemoryClaimer{claims: make(map[string]string)}
}

func (c *MemoryClaimer) Claim(_ context.Context, videoID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, held := c.claims[videoID]; held {
		return "", false, nil
	}
	token := uuid.NewString()
	c.claims[videoID] = token
	return token, true, nil
}

func (c *MemoryClaimer) Release(_ context.Context, videoID, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.claims[videoID] == token {
		delete(c.claims, videoID)
	}
	return nil
}

// Held reports whether videoID is currently claimed.
func (c *MemoryClaimer) Held(videoID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.claims[videoID]
	return ok
}

var (
	_ Claimer = (*RedisClaimer)(nil)
	_ Claimer = (*MemoryClaimer)(nil)
)
