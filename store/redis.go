package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	recordPrefix  = "presence:"
	eventsChannel = "presence:events"
)

// RedisStore keeps each record as a Redis hash (one hash field per
// record field, values JSON-encoded) and fans change events out over
// pub/sub so every node sees every write.
type RedisStore struct {
	client *redis.Client

	subMu   sync.Mutex
	nextSub int64
	subs    map[int64]subscription

	ctx    context.Context
	cancel context.CancelFunc
}

type changeEvent struct {
	Key    string            `json:"key"`
	Fields map[string]string `json:"fields"` // nil on remove
}

func NewRedisStore(client *redis.Client) *RedisStore {
	ctx, cancel := context.WithCancel(context.Background())

	rs := &RedisStore{
		client: client,
		subs:   make(map[int64]subscription),
		ctx:    ctx,
		cancel: cancel,
	}

	go rs.listen()
	return rs
}

// Close stops the pub/sub listener.
func (rs *RedisStore) Close() {
	rs.cancel()
}

func (rs *RedisStore) Read(ctx context.Context, key string) (Fields, error) {
	values, err := rs.client.HGetAll(ctx, recordPrefix+key).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return fieldsFromStrings(values), nil
}

func (rs *RedisStore) Write(ctx context.Context, key string, fields Fields) error {
	pipe := rs.client.TxPipeline()
	pipe.Del(ctx, recordPrefix+key)
	if len(fields) > 0 {
		pipe.HSet(ctx, recordPrefix+key, stringsFromFields(fields))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	rs.publish(ctx, key)
	return nil
}

func (rs *RedisStore) Update(ctx context.Context, key string, fields Fields) error {
	set := make(map[string]interface{})
	var del []string
	for k, v := range fields {
		if v == nil {
			del = append(del, k)
			continue
		}
		set[k] = string(v)
	}

	pipe := rs.client.TxPipeline()
	if len(set) > 0 {
		pipe.HSet(ctx, recordPrefix+key, set)
	}
	if len(del) > 0 {
		pipe.HDel(ctx, recordPrefix+key, del...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	rs.publish(ctx, key)
	return nil
}

func (rs *RedisStore) Remove(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, recordPrefix+key).Err(); err != nil {
		return err
	}

	event := changeEvent{Key: key}
	payload, _ := json.Marshal(event)
	if err := rs.client.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		logrus.Warnf("Failed to publish remove event for %s: %v", key, err)
	}
	return nil
}

func (rs *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := rs.client.Scan(ctx, cursor, recordPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, recordPrefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (rs *RedisStore) Subscribe(key string, onChange func(key string, fields Fields)) func() {
	return rs.subscribe(key, onChange)
}

func (rs *RedisStore) SubscribeAll(onChange func(key string, fields Fields)) func() {
	return rs.subscribe("", onChange)
}

func (rs *RedisStore) subscribe(key string, onChange func(key string, fields Fields)) func() {
	rs.subMu.Lock()
	rs.nextSub++
	id := rs.nextSub
	rs.subs[id] = subscription{key: key, onChange: onChange}
	rs.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			rs.subMu.Lock()
			delete(rs.subs, id)
			rs.subMu.Unlock()
		})
	}
}

// publish reads the record back and broadcasts it. The read-back keeps
// subscribers consistent with merged updates from other writers.
func (rs *RedisStore) publish(ctx context.Context, key string) {
	values, err := rs.client.HGetAll(ctx, recordPrefix+key).Result()
	if err != nil {
		logrus.Warnf("Failed to read back record %s for publish: %v", key, err)
		return
	}

	event := changeEvent{Key: key, Fields: values}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	if err := rs.client.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		logrus.Warnf("Failed to publish change event for %s: %v", key, err)
	}
}

func (rs *RedisStore) listen() {
	pubsub := rs.client.Subscribe(rs.ctx, eventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-rs.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event changeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logrus.Warnf("Malformed presence change event: %v", err)
				continue
			}

			var fields Fields
			if event.Fields != nil {
				fields = fieldsFromStrings(event.Fields)
			}
			rs.dispatch(event.Key, fields)
		}
	}
}

func (rs *RedisStore) dispatch(key string, fields Fields) {
	rs.subMu.Lock()
	targets := make([]func(string, Fields), 0, len(rs.subs))
	for _, sub := range rs.subs {
		if sub.key == "" || sub.key == key {
			targets = append(targets, sub.onChange)
		}
	}
	rs.subMu.Unlock()

	for _, fn := range targets {
		fn(key, fields)
	}
}

func fieldsFromStrings(values map[string]string) Fields {
	fields := make(Fields, len(values))
	for k, v := range values {
		fields[k] = []byte(v)
	}
	return fields
}

func stringsFromFields(fields Fields) map[string]interface{} {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = string(v)
	}
	return values
}
