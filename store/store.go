// Package store persists captured transaction records. Every backend implements Store; Open
// selects one from configuration.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

const (
	TypeMemory     = "memory"
	TypeRedis      = "redis"
	TypeConsul     = "consul"
	TypeDynamoDB   = "dynamodb"
	TypeClickHouse = "clickhouse"

	DefaultPrefix = "rfd"
	DefaultLimit  = 100
)

var ErrUnknownType = errors.New("unknown store type")

// Query selects records for List. Empty fields match everything.
type Query struct {
	Endpoint    string
	Transaction string
	Limit       int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

func (q Query) matches(rec wslog.Record) bool {
	return (q.Endpoint == "" || q.Endpoint == rec.Endpoint) &&
		(q.Transaction == "" || q.Transaction == rec.Transaction)
}

// Store is a transaction record repository. List returns the newest records first.
type Store interface {
	Save(ctx context.Context, rec wslog.Record) error
	Get(ctx context.Context, id string) (wslog.Record, bool, error)
	List(ctx context.Context, q Query) ([]wslog.Record, error)
	Reset(ctx context.Context) error
	Close() error
}

type Config struct {
	Type       string            `yaml:"type" validate:"omitempty,oneof=memory redis consul dynamodb clickhouse"`
	Prefix     string            `yaml:"prefix"`
	Redis      *RedisConfig      `yaml:"redis" validate:"required_if=Type redis"`
	Consul     *ConsulConfig     `yaml:"consul"`
	DynamoDB   *DynamoDBConfig   `yaml:"dynamodb" validate:"required_if=Type dynamodb"`
	ClickHouse *ClickHouseConfig `yaml:"clickhouse" validate:"required_if=Type clickhouse"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"required"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ConsulConfig struct {
	Address string `yaml:"address"`
}

type DynamoDBConfig struct {
	Table    string `yaml:"table" validate:"required"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

type ClickHouseConfig struct {
	Addr     string `yaml:"addr" validate:"required"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
}

func (c Config) prefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return c.Prefix
}

// Open creates the store selected by config.Type. An empty type means memory.
func Open(ctx context.Context, config Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch config.Type {
	case "", TypeMemory:
		return NewMemoryStore(), nil
	case TypeRedis:
		if config.Redis == nil {
			return nil, errors.New("redis store needs a redis section")
		}
		return NewRedisStore(ctx, *config.Redis, config.prefix())
	case TypeConsul:
		var cc ConsulConfig
		if config.Consul != nil {
			cc = *config.Consul
		}
		return NewConsulStore(cc, config.prefix())
	case TypeDynamoDB:
		if config.DynamoDB == nil {
			return nil, errors.New("dynamodb store needs a dynamodb section")
		}
		return NewDynamoDBStore(ctx, *config.DynamoDB, config.prefix())
	case TypeClickHouse:
		if config.ClickHouse == nil {
			return nil, errors.New("clickhouse store needs a clickhouse section")
		}
		return NewClickHouseStore(ctx, *config.ClickHouse, logger)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, config.Type)
	}
}

// Sink returns a wslog.Sink that saves every delivered record into s.
func Sink(s Store) wslog.Sink {
	return wslog.SinkFunc(func(ctx context.Context, rec wslog.Record) error {
		return s.Save(ctx, rec)
	})
}

// newestFirst sorts by request time, then ID, both descending.
func newestFirst(records []wslog.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.RequestTime.Equal(b.RequestTime) {
			return a.RequestTime.After(b.RequestTime)
		}
		return a.ID > b.ID
	})
}

// selectRecords sorts records and applies the query filter and limit.
func selectRecords(records []wslog.Record, q Query) []wslog.Record {
	newestFirst(records)
	ret := make([]wslog.Record, 0, q.limit())
	for _, rec := range records {
		if !q.matches(rec) {
			continue
		}
		ret = append(ret, rec)
		if len(ret) == q.limit() {
			break
		}
	}
	return ret
}
