package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// EventsChannel carries JSON-encoded Events.
const EventsChannel = "futarchy:events"

// ErrMiss is returned by GetJSON when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// RedisCache holds short-lived read snapshots and publishes events.
//
// Key schema:
//
//	futarchy:vault:{vault}:{wallet}     - VaultView JSON, TTL-bound
//	futarchy:market:{proposal}:{branch} - MarketView JSON, TTL-bound
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *logrus.Logger
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Logger   *logrus.Logger
}

// NewRedisCache connects and pings. Callers treat an error as "run without
// cache".
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedisCacheFromClient(client, cfg.TTL, cfg.Logger), nil
}

func NewRedisCacheFromClient(client redis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func VaultKey(vault, wallet string) string {
	return fmt.Sprintf("futarchy:vault:%s:%s", vault, wallet)
}

func MarketKey(proposal, branch string) string {
	return fmt.Sprintf("futarchy:market:%s:%s", proposal, branch)
}

func (r *RedisCache) SetJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) GetJSON(ctx context.Context, key string, v interface{}) error {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("redis: get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("redis: unmarshal %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) InvalidateVault(ctx context.Context, vault, wallet string) error {
	return r.client.Del(ctx, VaultKey(vault, wallet)).Err()
}

func (r *RedisCache) InvalidateMarket(ctx context.Context, proposal, branch string) error {
	return r.client.Del(ctx, MarketKey(proposal, branch)).Err()
}

// Record publishes the event on EventsChannel.
func (r *RedisCache) Record(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, EventsChannel, data).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", EventsChannel, err)
	}
	return nil
}

// Subscribe streams decoded events until ctx is cancelled; the returned
// channel is closed at that point.
func (r *RedisCache) Subscribe(ctx context.Context) (<-chan Event, error) {
	pubsub := r.client.Subscribe(ctx, EventsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", EventsChannel, err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.WithError(err).Warn("dropping malformed event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
