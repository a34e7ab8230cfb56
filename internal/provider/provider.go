// Package provider loads and stores flow and config definitions. The engine
// treats persisted definitions as opaque structured data; this package is
// the only place that knows how they are encoded
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kode4food/sequin/internal/config"
	"github.com/kode4food/sequin/pkg/api"
)

// Provider loads and persists flow and config definitions
type Provider interface {
	LoadFlowDefinition(
		ctx context.Context, category, name string,
	) (*api.FlowDefinition, error)
	LoadConfigDefinition(
		ctx context.Context, category, name, configName string,
	) (*api.ConfigDefinition, error)
	SaveFlowDefinition(ctx context.Context, flow *api.FlowDefinition) error
	SaveConfigDefinition(ctx context.Context, cfg *api.ConfigDefinition) error
	Categories(ctx context.Context) ([]string, error)
	Flows(ctx context.Context, category string) ([]string, error)
	Close() error
}

const memoryURL = "memory"

var (
	ErrFlowNotFound      = errors.New("flow definition not found")
	ErrConfigNotFound    = errors.New("config definition not found")
	ErrCategoryRequired  = errors.New("category required")
	ErrFlowNameRequired  = errors.New("flow name required")
	ErrUnsupportedURL    = errors.New("unsupported provider URL")
	ErrDefinitionInvalid = errors.New("invalid definition")
)

// Open creates the Provider selected by the configuration's URL
func Open(ctx context.Context, cfg config.ProviderConfig) (Provider, error) {
	switch {
	case cfg.URL == memoryURL:
		return NewMemory(), nil
	case cfg.URL == config.RedisProviderURL:
		return NewRedis(ctx, cfg.Redis)
	case strings.Contains(cfg.URL, "://"):
		return NewBlob(ctx, cfg.URL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, cfg.URL)
	}
}

// LoadConfigOrDefault loads the named config definition, falling back to
// defaults when none has been stored under the default config name
func LoadConfigOrDefault(
	ctx context.Context, p Provider, category, name, configName string,
) (*api.ConfigDefinition, error) {
	if configName == "" {
		configName = api.DefaultConfigName
	}
	cfg, err := p.LoadConfigDefinition(ctx, category, name, configName)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, ErrConfigNotFound) &&
		configName == api.DefaultConfigName {
		return api.NewConfigDefinition(category, name), nil
	}
	return nil, err
}

func checkFlow(flow *api.FlowDefinition) error {
	if flow == nil {
		return api.ErrFlowDefinitionRequired
	}
	return checkNames(flow.Category, flow.Name)
}

func checkConfig(cfg *api.ConfigDefinition) error {
	if cfg == nil {
		return ErrDefinitionInvalid
	}
	return checkNames(cfg.Category, cfg.Name)
}

func checkNames(category, name string) error {
	if category == "" {
		return ErrCategoryRequired
	}
	if name == "" {
		return ErrFlowNameRequired
	}
	return nil
}

func configName(cfg *api.ConfigDefinition) string {
	if cfg.ConfigName == "" {
		return api.DefaultConfigName
	}
	return cfg.ConfigName
}

func flowNotFound(category, name string) error {
	return fmt.Errorf("%w: %s/%s", ErrFlowNotFound, category, name)
}

func configNotFound(category, name, configName string) error {
	return fmt.Errorf("%w: %s/%s/%s",
		ErrConfigNotFound, category, name, configName)
}
