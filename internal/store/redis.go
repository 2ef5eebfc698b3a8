package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"snappit/internal/models"
	"snappit/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	docKeyPrefix  = "snappit:doc:"
	setKeyPrefix  = "snappit:set:"
	eventChanPref = "snappit:evt:"
)

// Redis is the production Store: JSON documents under plain keys, Redis
// sets for the follow-edge documents, MULTI/EXEC pipelines for atomic
// batches, and pub/sub channels per path for change subscriptions.
type Redis struct {
	rdb *redis.Client
	log *observability.StoreLogger
}

// NewRedis creates a Store backed by the given Redis client.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, log: observability.NewStoreLogger("redis")}
}

// Close releases the underlying Redis connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

type eventPayload struct {
	Path    string          `json:"path"`
	Raw     json.RawMessage `json:"raw,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

func (r *Redis) Get(ctx context.Context, path string, dest any) error {
	raw, err := r.rdb.Get(ctx, docKeyPrefix+path).Bytes()
	if err == redis.Nil {
		return models.NewNotFoundError("Document", path)
	}
	if err != nil {
		return r.remoteErr(ctx, "get", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return r.remoteErr(ctx, "get", err)
	}
	return nil
}

func (r *Redis) Put(ctx context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return models.NewRemoteError(err)
	}
	payload, err := json.Marshal(eventPayload{Path: path, Raw: raw})
	if err != nil {
		return models.NewRemoteError(err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKeyPrefix+path, raw, 0)
		pipe.Publish(ctx, eventChanPref+path, payload)
		return nil
	})
	if err != nil {
		return r.remoteErr(ctx, "put", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, path string) error {
	payload, err := json.Marshal(eventPayload{Path: path, Deleted: true})
	if err != nil {
		return models.NewRemoteError(err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKeyPrefix+path)
		pipe.Publish(ctx, eventChanPref+path, payload)
		return nil
	})
	if err != nil {
		return r.remoteErr(ctx, "delete", err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context, prefix string, each func(path string, raw []byte) error) error {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, docKeyPrefix+prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return r.remoteErr(ctx, "list", err)
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return r.remoteErr(ctx, "list", err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // deleted between SCAN and MGET
		}
		path := strings.TrimPrefix(keys[i], docKeyPrefix)
		if err := each(path, []byte(s)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Redis) Members(ctx context.Context, path string) ([]string, error) {
	members, err := r.rdb.SMembers(ctx, setKeyPrefix+path).Result()
	if err != nil {
		return nil, r.remoteErr(ctx, "members", err)
	}
	sort.Strings(members)
	return members, nil
}

func (r *Redis) Batch(ctx context.Context, ops ...Op) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			switch op.Kind {
			case OpAddMember:
				pipe.SAdd(ctx, setKeyPrefix+op.Path, op.Member)
			case OpRemoveMember:
				pipe.SRem(ctx, setKeyPrefix+op.Path, op.Member)
			default:
				return errInvalidOp
			}
			// Set events carry no snapshot; interested consumers re-read.
			payload, err := json.Marshal(eventPayload{Path: op.Path})
			if err != nil {
				return err
			}
			pipe.Publish(ctx, eventChanPref+op.Path, payload)
		}
		return nil
	})
	if err != nil {
		return r.remoteErr(ctx, "batch", err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, prefix string) (Subscription, error) {
	ps := r.rdb.PSubscribe(ctx, eventChanPref+prefix+"*")
	// Force the subscription onto the wire before returning so callers do
	// not miss writes issued immediately after Subscribe.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, r.remoteErr(ctx, "subscribe", err)
	}

	sub := &redisSub{ps: ps, ch: make(chan Event, 256)}
	go func() {
		defer close(sub.ch)
		for msg := range ps.Channel() {
			var payload eventPayload
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				r.log.LogError(context.Background(), "subscribe", err)
				continue
			}
			ev := Event{Path: payload.Path, Raw: payload.Raw, Deleted: payload.Deleted}
			select {
			case sub.ch <- ev:
			default:
				observability.StoreErrors.WithLabelValues("subscribe_drop").Inc()
			}
		}
	}()
	return sub, nil
}

type redisSub struct {
	ps   *redis.PubSub
	ch   chan Event
	once sync.Once
}

func (s *redisSub) Events() <-chan Event { return s.ch }

func (s *redisSub) Close() {
	s.once.Do(func() { _ = s.ps.Close() })
}

func (r *Redis) remoteErr(ctx context.Context, op string, err error) error {
	r.log.LogError(ctx, op, err)
	return models.NewRemoteError(err)
}
