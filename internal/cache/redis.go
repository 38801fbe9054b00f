package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/pkg/config"
	"github.com/StockHamster/market-calendar/pkg/models"
)

// Key prefixes
const (
	bundlePrefix = "bundle:"
	chartPrefix  = "chart:"
)

// RedisClient handles Redis caching operations
type RedisClient struct {
	client *redis.Client
	logger *logrus.Entry
	cfg    *config.RedisConfig
	ttl    time.Duration
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		// Pool settings to avoid stale connections
		PoolTimeout: 4 * time.Second, // Timeout for getting connection from pool
		IdleTimeout: 5 * time.Minute, // Close idle connections after this duration
		MaxRetries:  2,               // Max retries before giving up
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	ttl := cfg.BundleTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute // Default TTL
	}

	return &RedisClient{
		client: client,
		logger: logger.WithField("component", "redis"),
		cfg:    cfg,
		ttl:    ttl,
	}, nil
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// Health checks Redis health
func (rc *RedisClient) Health(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Bundle operations

// SetBundle caches a loaded day bundle
func (rc *RedisClient) SetBundle(ctx context.Context, bundle *models.DayBundle) error {
	if bundle == nil {
		return nil
	}
	return rc.SetJSON(ctx, bundlePrefix+bundle.Date, bundle, rc.ttl)
}

// GetBundle returns a cached bundle, or nil on a miss
func (rc *RedisClient) GetBundle(ctx context.Context, date string) (*models.DayBundle, error) {
	var bundle models.DayBundle
	found, err := rc.GetJSON(ctx, bundlePrefix+date, &bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to get bundle: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &bundle, nil
}

// InvalidateBundle drops one cached date, or every date when date is empty
func (rc *RedisClient) InvalidateBundle(ctx context.Context, date string) error {
	if date != "" {
		// Rendered charts of the date go with the bundle
		if err := rc.Delete(ctx, bundlePrefix+date); err != nil {
			return err
		}
		return rc.DeletePattern(ctx, chartPrefix+date+":*")
	}
	if err := rc.DeletePattern(ctx, chartPrefix+"*"); err != nil {
		return err
	}
	return rc.DeletePattern(ctx, bundlePrefix+"*")
}

// Chart operations

// ChartKey names a rendered chart variant
func ChartKey(date string, market models.MarketFilter, width, height int) string {
	return fmt.Sprintf("%s%s:%s:%dx%d", chartPrefix, date, market, width, height)
}

// SetChart caches rendered PNG bytes
func (rc *RedisClient) SetChart(ctx context.Context, key string, png []byte) error {
	return rc.client.Set(ctx, key, png, rc.ttl).Err()
}

// GetChart returns cached PNG bytes, or nil on a miss
func (rc *RedisClient) GetChart(ctx context.Context, key string) ([]byte, error) {
	data, err := rc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chart: %w", err)
	}
	return data, nil
}

// Utility operations

// DeletePattern deletes all keys matching a pattern
func (rc *RedisClient) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	var keys []string

	for {
		var err error
		var batch []string
		// Scan in batches of 100 keys
		batch, cursor, err = rc.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	if len(keys) > 0 {
		rc.logger.WithFields(logrus.Fields{
			"pattern": pattern,
			"keys":    len(keys),
		}).Debug("Deleting cached keys")
		return rc.client.Del(ctx, keys...).Err()
	}

	return nil
}

// SetJSON stores a JSON-encoded value
func (rc *RedisClient) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return rc.client.Set(ctx, key, data, expiration).Err()
}

// GetJSON retrieves and decodes a JSON value
func (rc *RedisClient) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := rc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil // Cache miss
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return true, nil
}

// Delete removes keys
func (rc *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return rc.client.Del(ctx, keys...).Err()
}
