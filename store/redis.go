package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

const redisBatchSize = 100

// RedisStore keeps each record msgpack-encoded under <prefix>:txn:<id>, and the IDs in the sorted
// set <prefix>:txns scored by request time.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, config RedisConfig, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", config.Addr, err)
	}
	return &RedisStore{redis: rdb, prefix: prefix}, nil
}

func (r *RedisStore) recordKey(id string) string { return r.prefix + ":txn:" + id }
func (r *RedisStore) indexKey() string           { return r.prefix + ":txns" }

func encodeRecord(rec wslog.Record) ([]byte, error) {
	return msgpack.Marshal(&rec)
}

func decodeRecord(data []byte) (wslog.Record, error) {
	var rec wslog.Record
	err := msgpack.Unmarshal(data, &rec)
	return rec, err
}

func (r *RedisStore) Save(ctx context.Context, rec wslog.Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.ID, err)
	}
	_, err = r.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.recordKey(rec.ID), data, 0)
		p.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(rec.RequestTime.UnixMilli()), Member: rec.ID})
		return nil
	})
	return err
}

func (r *RedisStore) Get(ctx context.Context, id string) (wslog.Record, bool, error) {
	data, err := r.redis.Get(ctx, r.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return wslog.Record{}, false, nil
	}
	if err != nil {
		return wslog.Record{}, false, err
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return wslog.Record{}, false, fmt.Errorf("decoding record %s: %w", id, err)
	}
	return rec, true, nil
}

func (r *RedisStore) List(ctx context.Context, q Query) ([]wslog.Record, error) {
	ids, err := r.redis.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ret := make([]wslog.Record, 0, q.limit())
	for len(ids) > 0 && len(ret) < q.limit() {
		n := min(len(ids), redisBatchSize)
		batch := ids[:n]
		ids = ids[n:]

		keys := make([]string, 0, len(batch))
		for _, id := range batch {
			keys = append(keys, r.recordKey(id))
		}
		values, err := r.redis.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			s, ok := v.(string)
			if !ok { // expired or deleted since the index was read
				continue
			}
			rec, err := decodeRecord([]byte(s))
			if err != nil {
				return nil, err
			}
			if q.matches(rec) {
				ret = append(ret, rec)
				if len(ret) == q.limit() {
					break
				}
			}
		}
	}
	return ret, nil
}

func (r *RedisStore) Reset(ctx context.Context) error {
	ids, err := r.redis.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return err
	}
	keys := []string{r.indexKey()}
	for _, id := range ids {
		keys = append(keys, r.recordKey(id))
	}
	for len(keys) > 0 {
		n := min(len(keys), redisBatchSize)
		if err := r.redis.Del(ctx, keys[:n]...).Err(); err != nil {
			return err
		}
		keys = keys[n:]
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.redis.Close()
}
