package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"arenaevo/internal/model"
)

const (
	redisPrefix      = "arenaevo:"
	redisAllBots     = redisPrefix + "bots"
	redisPingTimeout = 5 * time.Second
)

// RedisStore keeps each record as a JSON value and ranks bots in one sorted
// set per game plus one across all games.
type RedisStore struct {
	dsn string

	mu     sync.RWMutex
	client *redis.Client
}

func NewRedisStore(dsn string) *RedisStore {
	return &RedisStore{dsn: dsn}
}

func redisOptions(dsn string) (*redis.Options, error) {
	if strings.HasPrefix(dsn, "redis://") || strings.HasPrefix(dsn, "rediss://") {
		return redis.ParseURL(dsn)
	}
	return &redis.Options{Addr: dsn}, nil
}

func (s *RedisStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dsn == "" {
		return errors.New("redis address is required")
	}
	if s.client != nil {
		return nil
	}
	opts, err := redisOptions(s.dsn)
	if err != nil {
		return fmt.Errorf("parse redis dsn: %w", err)
	}
	client := redis.NewClient(opts)

	ctxPing, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}

	s.client = client
	return nil
}

func (s *RedisStore) getClient() (*redis.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.client == nil {
		return nil, ErrNotInitialized
	}
	return s.client, nil
}

func botKey(id string) string { return redisPrefix + "bot:" + id }

func gameKey(game string) string { return redisPrefix + "bots:" + game }

func runKey(id string) string { return redisPrefix + "run:" + id }

func (s *RedisStore) SaveBot(ctx context.Context, bot model.BotRecord) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}
	payload, err := EncodeBot(bot)
	if err != nil {
		return err
	}
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, botKey(bot.ID), payload, 0)
		member := redis.Z{Score: bot.Score, Member: bot.ID}
		pipe.ZAdd(ctx, gameKey(bot.Game), member)
		pipe.ZAdd(ctx, redisAllBots, member)
		return nil
	})
	return err
}

func (s *RedisStore) GetBot(ctx context.Context, id string) (model.BotRecord, bool, error) {
	client, err := s.getClient()
	if err != nil {
		return model.BotRecord{}, false, err
	}
	payload, err := client.Get(ctx, botKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.BotRecord{}, false, nil
	}
	if err != nil {
		return model.BotRecord{}, false, err
	}
	bot, err := DecodeBot(payload)
	if err != nil {
		return model.BotRecord{}, false, fmt.Errorf("decode bot %s: %w", id, err)
	}
	return bot, true, nil
}

func (s *RedisStore) ListBots(ctx context.Context, game string, limit int) ([]model.BotRecord, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}
	key := redisAllBots
	if game != "" {
		key = gameKey(game)
	}
	ids, err := client.ZRevRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = botKey(id)
	}
	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.BotRecord, 0, len(values))
	for i, v := range values {
		payload, ok := v.(string)
		if !ok {
			continue
		}
		bot, err := DecodeBot([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decode bot %s: %w", ids[i], err)
		}
		out = append(out, bot)
	}
	return rankBots(out, limit), nil
}

func (s *RedisStore) SaveRun(ctx context.Context, run model.RunSummary) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	return client.Set(ctx, runKey(run.ID), payload, 0).Err()
}

func (s *RedisStore) GetRun(ctx context.Context, id string) (model.RunSummary, bool, error) {
	client, err := s.getClient()
	if err != nil {
		return model.RunSummary{}, false, err
	}
	payload, err := client.Get(ctx, runKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.RunSummary{}, false, nil
	}
	if err != nil {
		return model.RunSummary{}, false, err
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunSummary{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
