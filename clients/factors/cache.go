package factors

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"time"

	"polyradar/internal/irrationality"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores factor decompositions in Redis. Factors for a market barely
// change between polls, so caching them cuts nearly all API spend. All methods
// are nil-receiver safe; a nil Cache behaves as a miss.
type Cache struct {
	logger   *zap.Logger
	client   *redis.Client
	ttl      time.Duration
	cooldown time.Duration
}

// NewCache connects to Redis and returns a Cache. Returns nil when the
// connection fails; callers treat a nil cache as disabled.
func NewCache(logger *zap.Logger, addr, password string, ttl, cooldown time.Duration) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr == "" {
		logger.Warn("REDIS_ADDR not set, factor cache disabled")
		return nil
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	if cooldown <= 0 {
		cooldown = 10 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("failed to connect to redis, factor cache disabled",
			zap.String("addr", addr),
			zap.Error(err),
		)
		return nil
	}

	logger.Info("connected to redis", zap.String("addr", addr))
	return &Cache{
		logger:   logger,
		client:   client,
		ttl:      ttl,
		cooldown: cooldown,
	}
}

// FactorKey identifies one (question, price bucket) pair. The price is
// bucketed to whole cents so small ticks reuse the cached decomposition.
func FactorKey(question string, yesPrice float64) string {
	hash := md5.Sum([]byte(fmt.Sprintf("%s:%.0f", question, yesPrice*100)))
	return fmt.Sprintf("%x", hash[:8])
}

// GetFactors retrieves a cached decomposition.
func (c *Cache) GetFactors(ctx context.Context, key string) (irrationality.Factors, bool) {
	if c == nil || c.client == nil {
		return irrationality.Factors{}, false
	}

	val, err := c.client.Get(ctx, "factors:analysis:"+key).Result()
	if err != nil {
		return irrationality.Factors{}, false
	}

	var f irrationality.Factors
	if err := json.Unmarshal([]byte(val), &f); err != nil {
		c.logger.Warn("corrupt factor cache entry", zap.String("key", key), zap.Error(err))
		return irrationality.Factors{}, false
	}
	return f, true
}

// SetFactors caches a decomposition. Failures are logged, not returned; the
// cache is best effort.
func (c *Cache) SetFactors(ctx context.Context, key string, f irrationality.Factors) {
	if c == nil || c.client == nil {
		return
	}

	jsonBytes, err := json.Marshal(f)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, "factors:analysis:"+key, jsonBytes, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache factors", zap.String("key", key), zap.Error(err))
	}
}

// SetCooldown marks a key as recently estimated.
func (c *Cache) SetCooldown(ctx context.Context, key string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, "factors:cooldown:"+key, time.Now().Unix(), c.cooldown).Err(); err != nil {
		c.logger.Warn("failed to set cooldown", zap.String("key", key), zap.Error(err))
	}
}

// InCooldown reports whether a key was estimated recently.
func (c *Cache) InCooldown(ctx context.Context, key string) bool {
	if c == nil || c.client == nil {
		return false
	}

	n, err := c.client.Exists(ctx, "factors:cooldown:"+key).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
