package provider

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/kode4food/sequin/internal/config"
	"github.com/kode4food/sequin/pkg/api"
)

// Redis implements Provider over a Redis server. Definitions are stored as
// JSON strings, with sets indexing categories and the flows in each
type Redis struct {
	client *redis.Client
	prefix string
}

var _ Provider = (*Redis)(nil)

// NewRedis connects to the configured Redis server and verifies the
// connection
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{client: client, prefix: cfg.Prefix}, nil
}

func (r *Redis) LoadFlowDefinition(
	ctx context.Context, category, name string,
) (*api.FlowDefinition, error) {
	var flow api.FlowDefinition
	err := r.read(ctx, r.key("flow", category, name), &flow)
	if errors.Is(err, redis.Nil) {
		return nil, flowNotFound(category, name)
	}
	if err != nil {
		return nil, err
	}
	return &flow, nil
}

func (r *Redis) LoadConfigDefinition(
	ctx context.Context, category, name, cfgName string,
) (*api.ConfigDefinition, error) {
	var cfg api.ConfigDefinition
	err := r.read(ctx, r.key("config", category, name, cfgName), &cfg)
	if errors.Is(err, redis.Nil) {
		return nil, configNotFound(category, name, cfgName)
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *Redis) SaveFlowDefinition(
	ctx context.Context, flow *api.FlowDefinition,
) error {
	if err := checkFlow(flow); err != nil {
		return err
	}
	data, err := json.Marshal(flow)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.key("flow", flow.Category, flow.Name), data, 0)
		p.SAdd(ctx, r.key("categories"), flow.Category)
		p.SAdd(ctx, r.key("flows", flow.Category), flow.Name)
		return nil
	})
	return err
}

func (r *Redis) SaveConfigDefinition(
	ctx context.Context, cfg *api.ConfigDefinition,
) error {
	if err := checkConfig(cfg); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	key := r.key("config", cfg.Category, cfg.Name, configName(cfg))
	return r.client.Set(ctx, key, data, 0).Err()
}

func (r *Redis) Categories(ctx context.Context) ([]string, error) {
	return r.members(ctx, r.key("categories"))
}

func (r *Redis) Flows(ctx context.Context, category string) ([]string, error) {
	return r.members(ctx, r.key("flows", category))
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) read(ctx context.Context, key string, out any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Join(ErrDefinitionInvalid, err)
	}
	return nil
}

func (r *Redis) members(ctx context.Context, key string) ([]string, error) {
	res, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(res)
	return res, nil
}

func (r *Redis) key(parts ...string) string {
	return r.prefix + ":" + strings.Join(parts, ":")
}
