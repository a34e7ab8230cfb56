package provider

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/kode4food/sequin/pkg/api"
)

type (
	// Memory is an in-process Provider, mostly useful for tests and for
	// running definitions loaded from local files
	Memory struct {
		mu      sync.RWMutex
		flows   map[flowKey]*api.FlowDefinition
		configs map[configKey]*api.ConfigDefinition
	}

	flowKey struct {
		category string
		name     string
	}

	configKey struct {
		flowKey
		config string
	}
)

var _ Provider = (*Memory)(nil)

// NewMemory creates an empty in-memory Provider
func NewMemory() *Memory {
	return &Memory{
		flows:   map[flowKey]*api.FlowDefinition{},
		configs: map[configKey]*api.ConfigDefinition{},
	}
}

func (m *Memory) LoadFlowDefinition(
	_ context.Context, category, name string,
) (*api.FlowDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if flow, ok := m.flows[flowKey{category, name}]; ok {
		return flow, nil
	}
	return nil, flowNotFound(category, name)
}

func (m *Memory) LoadConfigDefinition(
	_ context.Context, category, name, cfgName string,
) (*api.ConfigDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := configKey{flowKey{category, name}, cfgName}
	if cfg, ok := m.configs[key]; ok {
		return cfg, nil
	}
	return nil, configNotFound(category, name, cfgName)
}

func (m *Memory) SaveFlowDefinition(
	_ context.Context, flow *api.FlowDefinition,
) error {
	if err := checkFlow(flow); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[flowKey{flow.Category, flow.Name}] = flow
	return nil
}

func (m *Memory) SaveConfigDefinition(
	_ context.Context, cfg *api.ConfigDefinition,
) error {
	if err := checkConfig(cfg); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := configKey{flowKey{cfg.Category, cfg.Name}, configName(cfg)}
	m.configs[key] = cfg
	return nil
}

func (m *Memory) Categories(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := map[string]struct{}{}
	for k := range m.flows {
		res[k.category] = struct{}{}
	}
	return slices.Sorted(maps.Keys(res)), nil
}

func (m *Memory) Flows(_ context.Context, category string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []string
	for k := range m.flows {
		if k.category == category {
			res = append(res, k.name)
		}
	}
	slices.Sort(res)
	return res, nil
}

func (m *Memory) Close() error {
	return nil
}
