package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cellrules/engine/pkg/logging"
	"github.com/cellrules/engine/pkg/ruleengine"
	"github.com/redis/go-redis/v9"
)

var (
	_ ruleengine.RuleStore = (*RedisStore)(nil)
	_ ruleengine.Broker    = (*RedisStore)(nil)
)

// RedisStore backs both RuleStore and Broker with a single Redis client:
// cell/box/rule records are JSON values under "cell:{id}:..." keys
// (SCAN-discoverable), and the broker's pub/sub channel carries
// control-plane and republished events.
type RedisStore struct {
	client      *redis.Client
	topicPrefix string
}

// NewRedisStore connects to addr and verifies the connection with a Ping.
// topicPrefix is used verbatim as the pub/sub channel name the Broker
// methods publish and subscribe on.
func NewRedisStore(addr, password string, db int, topicPrefix string) (*RedisStore, error) {
	logging.Logger.Info().Str("addr", addr).Int("db", db).Msg("connecting to redis")

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, logging.NewError(logging.ErrorTypeTransientStore, "failed to connect to redis", err, map[string]interface{}{"addr": addr})
	}

	logging.Logger.Info().Msg("connected to redis")
	return &RedisStore{client: client, topicPrefix: topicPrefix}, nil
}

func cellSetKey() string                { return "cells" }
func ruleKey(cellID, key string) string { return fmt.Sprintf("cell:%s:rule:%s", cellID, key) }
func rulePrefix(cellID string) string   { return fmt.Sprintf("cell:%s:rule:", cellID) }
func boxKey(cellID, name string) string { return fmt.Sprintf("cell:%s:box:%s", cellID, name) }

// ListCells returns every known cell ID.
func (s *RedisStore) ListCells(ctx context.Context) ([]string, error) {
	cells, err := s.client.SMembers(ctx, cellSetKey()).Result()
	if err != nil {
		return nil, logging.NewError(logging.ErrorTypeTransientStore, "failed to list cells", err, nil)
	}
	return cells, nil
}

// ListRules returns every rule stored for cellID.
func (s *RedisStore) ListRules(ctx context.Context, cellID string) ([]ruleengine.RuleDefinition, error) {
	var rules []ruleengine.RuleDefinition
	iter := s.client.Scan(ctx, 0, rulePrefix(cellID)+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, logging.NewError(logging.ErrorTypeTransientStore, "failed to read rule during scan", err, map[string]interface{}{"cellId": cellID, "key": iter.Val()})
		}
		var def ruleengine.RuleDefinition
		if err := json.Unmarshal([]byte(data), &def); err != nil {
			logging.Logger.Error().Err(err).Str("key", iter.Val()).Msg("skipping malformed rule record")
			continue
		}
		rules = append(rules, def)
	}
	if err := iter.Err(); err != nil {
		return nil, logging.NewError(logging.ErrorTypeTransientStore, "failed to scan rules", err, map[string]interface{}{"cellId": cellID})
	}
	return rules, nil
}

// ReadRule reads a single rule by its compound key.
func (s *RedisStore) ReadRule(ctx context.Context, cellID, compoundKey string) (*ruleengine.RuleDefinition, error) {
	data, err := s.client.Get(ctx, ruleKey(cellID, compoundKey)).Result()
	if err == redis.Nil {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, logging.NewError(logging.ErrorTypeTransientStore, "failed to read rule", err, map[string]interface{}{"cellId": cellID, "key": compoundKey})
	}
	var def ruleengine.RuleDefinition
	if err := json.Unmarshal([]byte(data), &def); err != nil {
		return nil, logging.NewError(logging.ErrorTypeMalformedKey, "failed to unmarshal rule record", err, map[string]interface{}{"cellId": cellID, "key": compoundKey})
	}
	return &def, nil
}

// FindBoxByName looks up a box by its (unique per cell) name.
func (s *RedisStore) FindBoxByName(ctx context.Context, cellID, name string) (*ruleengine.BoxDefinition, error) {
	data, err := s.client.Get(ctx, boxKey(cellID, name)).Result()
	if err == redis.Nil {
		return nil, ErrBoxNotFound
	}
	if err != nil {
		return nil, logging.NewError(logging.ErrorTypeTransientStore, "failed to read box", err, map[string]interface{}{"cellId": cellID, "name": name})
	}
	var def ruleengine.BoxDefinition
	if err := json.Unmarshal([]byte(data), &def); err != nil {
		return nil, logging.NewError(logging.ErrorTypeMalformedKey, "failed to unmarshal box record", err, map[string]interface{}{"cellId": cellID, "name": name})
	}
	return &def, nil
}

// PutRule writes a rule record, for use by seed/fixture tooling.
func (s *RedisStore) PutRule(ctx context.Context, cellID string, def ruleengine.RuleDefinition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, cellSetKey(), cellID).Err(); err != nil {
		return err
	}
	return s.client.Set(ctx, ruleKey(cellID, def.Name), data, 0).Err()
}

// PutBox writes a box record, for use by seed/fixture tooling.
func (s *RedisStore) PutBox(ctx context.Context, cellID string, def ruleengine.BoxDefinition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, cellSetKey(), cellID).Err(); err != nil {
		return err
	}
	return s.client.Set(ctx, boxKey(cellID, def.Name), data, 0).Err()
}

// Publish marshals event to JSON and publishes it on the broker's topic.
func (s *RedisStore) Publish(ctx context.Context, event *ruleengine.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.topicPrefix, data).Err(); err != nil {
		return logging.NewError(logging.ErrorTypeTransientStore, "failed to publish event", err, map[string]interface{}{"cellId": event.CellID, "type": event.Type})
	}
	return nil
}

// Close releases the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// SubscribeLoop subscribes to the broker topic and invokes handler for
// every message until ctx is cancelled or the subscription errs out.
func (s *RedisStore) SubscribeLoop(ctx context.Context, handler func(*ruleengine.Event) bool) error {
	pubsub := s.client.Subscribe(ctx, s.topicPrefix)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return logging.NewError(logging.ErrorTypeTransientStore, "failed to subscribe", err, map[string]interface{}{"topic": s.topicPrefix})
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event ruleengine.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logging.Logger.Error().Err(err).Str("payload", msg.Payload).Msg("skipping malformed control event")
				continue
			}
			handler(&event)
		}
	}
}
