package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"hvacsched/internal/config"
	"hvacsched/internal/model"
)

// Redis keeps the document as a JSON string value.
type Redis struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, cfg config.RedisConfig, key string, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedis(client, key, logger), nil
}

func NewRedis(client *redis.Client, key string, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, key: key, logger: logger}
}

func (r *Redis) Load(ctx context.Context) (model.Document, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Document{}, ErrNotFound
		}
		return model.Document{}, fmt.Errorf("store: redis get %s: %w", r.key, err)
	}
	return decode(data, "redis key "+r.key)
}

func (r *Redis) Save(ctx context.Context, doc model.Document) error {
	data, err := model.EncodeDocument(doc)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set %s: %w", r.key, err)
	}
	r.logger.Debug("schedule document written", zap.String("key", r.key), zap.Int("schedules", len(doc.Schedules)))
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
