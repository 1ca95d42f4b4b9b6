// Package httpapi wires the routing engine behind an HTTP surface: a
// /v2/route endpoint backed by a Redis-memoised Router, plus /v2/stops and
// /health, following the
// teacher's fiber + go-redis pairing. The distributed mutex the teacher used
// to dedupe concurrent identical route computations was dropped — a single
// Router already serialises queries against its one Graph (§5), so a
// cross-process lock would only contend against itself; see DESIGN.md.
package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/antigravity/transitcore/internal/model"
	"github.com/redis/go-redis/v9"
)

var (
	client     *redis.Client
	clientOnce sync.Once
	clientErr  error
)

// CacheConfig holds Redis configuration, in the teacher's Config/getEnv idiom.
type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// LoadCacheConfigFromEnv loads Redis configuration from TRANSITCORE_REDIS_*
// environment variables.
func LoadCacheConfigFromEnv() *CacheConfig {
	port, _ := strconv.Atoi(getEnv("TRANSITCORE_REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnv("TRANSITCORE_REDIS_DB", "0"))
	ttl, _ := time.ParseDuration(getEnv("TRANSITCORE_CACHE_TTL", "10m"))

	return &CacheConfig{
		Host:     getEnv("TRANSITCORE_REDIS_HOST", "localhost"),
		Port:     port,
		Password: getEnv("TRANSITCORE_REDIS_PASSWORD", ""),
		DB:       db,
		TTL:      ttl,
	}
}

// GetClient returns the global Redis client, connecting lazily on first use.
func GetClient() (*redis.Client, error) {
	clientOnce.Do(func() {
		config := LoadCacheConfigFromEnv()

		client = redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			Password:     config.Password,
			DB:           config.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			clientErr = fmt.Errorf("failed to connect to Redis: %w", err)
		}
	})

	return client, clientErr
}

// Close closes the Redis client.
func Close() {
	if client != nil {
		client.Close()
	}
}

// RouteKey generates a deterministic cache key from the raw endpoint query
// parameters ("stop:<id>" or "geo:<lat>,<lon>") plus the starting time.
func RouteKey(from, to string, startingSeconds int) string {
	data := fmt.Sprintf("%s|%s|%d", from, to, startingSeconds)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("route:%x", hash[:12])
}

// GetRoute retrieves a cached step sequence, or (nil, nil) on a cache miss.
func GetRoute(ctx context.Context, key string) ([]model.NavStep, error) {
	c, err := GetClient()
	if err != nil {
		return nil, err
	}

	data, err := c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var steps []model.NavStep
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached route: %w", err)
	}
	return steps, nil
}

// SetRoute caches a step sequence for ttl.
func SetRoute(ctx context.Context, key string, steps []model.NavStep, ttl time.Duration) error {
	c, err := GetClient()
	if err != nil {
		return err
	}

	data, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to marshal route: %w", err)
	}
	return c.Set(ctx, key, data, ttl).Err()
}

// HealthCheck pings the Redis connection.
func HealthCheck(ctx context.Context) error {
	c, err := GetClient()
	if err != nil {
		return fmt.Errorf("redis client not initialized: %w", err)
	}
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
