package store

import (
	"context"
	"encoding/json"
	"fmt"

	consul "github.com/hashicorp/consul/api"

	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

// ConsulStore keeps each record as JSON under the KV key <prefix>/<id>.
type ConsulStore struct {
	consul *consul.Client
	prefix string
}

func NewConsulStore(config ConsulConfig, prefix string) (*ConsulStore, error) {
	cc := consul.DefaultConfig()
	if config.Address != "" {
		cc.Address = config.Address
	}
	client, err := consul.NewClient(cc)
	if err != nil {
		return nil, fmt.Errorf("creating consul client: %w", err)
	}
	return &ConsulStore{consul: client, prefix: prefix}, nil
}

func (c *ConsulStore) key(id string) string { return c.prefix + "/" + id }

func (c *ConsulStore) Save(ctx context.Context, rec wslog.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = c.consul.KV().Put(&consul.KVPair{Key: c.key(rec.ID), Value: data}, (&consul.WriteOptions{}).WithContext(ctx))
	return err
}

func (c *ConsulStore) Get(ctx context.Context, id string) (wslog.Record, bool, error) {
	pair, _, err := c.consul.KV().Get(c.key(id), (&consul.QueryOptions{}).WithContext(ctx))
	if err != nil || pair == nil {
		return wslog.Record{}, false, err
	}
	var rec wslog.Record
	if err := json.Unmarshal(pair.Value, &rec); err != nil {
		return wslog.Record{}, false, fmt.Errorf("decoding record %s: %w", id, err)
	}
	return rec, true, nil
}

func (c *ConsulStore) List(ctx context.Context, q Query) ([]wslog.Record, error) {
	pairs, _, err := c.consul.KV().List(c.prefix+"/", (&consul.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list failed for %s: %w", c.prefix, err)
	}
	records := make([]wslog.Record, 0, len(pairs))
	for _, pair := range pairs {
		var rec wslog.Record
		if err := json.Unmarshal(pair.Value, &rec); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", pair.Key, err)
		}
		records = append(records, rec)
	}
	return selectRecords(records, q), nil
}

func (c *ConsulStore) Reset(ctx context.Context) error {
	_, err := c.consul.KV().DeleteTree(c.prefix+"/", (&consul.WriteOptions{}).WithContext(ctx))
	return err
}

func (c *ConsulStore) Close() error { return nil }
