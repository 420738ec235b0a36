package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrSessionNotFound is returned for unknown or expired tokens
var ErrSessionNotFound = errors.New("session not found")

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Ping checks redis reachability
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// SetSession binds a bearer token to an agent id with TTL
func (c *Client) SetSession(ctx context.Context, token string, agentID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, sessionKey(token), agentID, ttl).Err()
}

// GetSession resolves a bearer token to its agent id
func (c *Client) GetSession(ctx context.Context, token string) (int64, error) {
	val, err := c.rdb.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, err
	}
	agentID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session value: %w", err)
	}
	return agentID, nil
}

// DeleteSession revokes a bearer token
func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.rdb.Del(ctx, sessionKey(token)).Err()
}

// stockTTL bounds how long a mirrored figure can outlive a product delete
const stockTTL = 15 * time.Minute

func stockKey(productExternalID, storeID int64) string {
	return fmt.Sprintf("inventory:%d:%d", productExternalID, storeID)
}

// SetStock mirrors the authoritative stock of a product at a store
func (c *Client) SetStock(ctx context.Context, productExternalID, storeID int64, stock float64) error {
	key := stockKey(productExternalID, storeID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "stock", strconv.FormatFloat(stock, 'f', -1, 64))
	pipe.HSet(ctx, key, "updated_at", time.Now().Unix())
	pipe.Expire(ctx, key, stockTTL)

	_, err := pipe.Exec(ctx)
	return err
}

// GetStock reads the mirrored stock; found is false when nothing is cached
func (c *Client) GetStock(ctx context.Context, productExternalID, storeID int64) (stock float64, found bool, err error) {
	val, err := c.rdb.HGet(ctx, stockKey(productExternalID, storeID), "stock").Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	stock, err = strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt stock value: %w", err)
	}
	return stock, true, nil
}
