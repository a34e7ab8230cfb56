package provider_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/sequin/internal/config"
	"github.com/kode4food/sequin/internal/provider"
	"github.com/kode4food/sequin/pkg/api"
)

func TestProviders(t *testing.T) {
	ctx := context.Background()

	open := map[string]func(t *testing.T) provider.Provider{
		"memory": func(*testing.T) provider.Provider {
			return provider.NewMemory()
		},
		"blob_mem": func(t *testing.T) provider.Provider {
			p, err := provider.NewBlob(ctx, "mem://")
			require.NoError(t, err)
			return p
		},
		"blob_file": func(t *testing.T) provider.Provider {
			p, err := provider.NewBlob(ctx, "file://"+t.TempDir())
			require.NoError(t, err)
			return p
		},
		"redis": func(t *testing.T) provider.Provider {
			server, err := miniredis.Run()
			require.NoError(t, err)
			t.Cleanup(server.Close)
			p, err := provider.NewRedis(ctx, config.RedisConfig{
				Addr:   server.Addr(),
				Prefix: "test",
			})
			require.NoError(t, err)
			return p
		},
	}

	for name, fn := range open {
		t.Run(name, func(t *testing.T) {
			p := fn(t)
			t.Cleanup(func() { _ = p.Close() })
			testProvider(t, p)
		})
	}
}

func testProvider(t *testing.T, p provider.Provider) {
	ctx := context.Background()

	_, err := p.LoadFlowDefinition(ctx, "orders", "ship")
	assert.ErrorIs(t, err, provider.ErrFlowNotFound)

	flow := &api.FlowDefinition{
		Category: "orders",
		Name:     "ship",
		Steps: []*api.Step{
			{
				ID:             "pack",
				Category:       "data",
				Implementation: "set",
				Inputs: []*api.Input{
					api.Literal("boxed").Named("status"),
				},
				Outputs: []*api.Output{
					{Name: "status", Mode: api.OutputData, Target: "state"},
				},
				Retry: api.Literal("2"),
			},
		},
		Data: []*api.DataDefinition{
			{Name: "state", IsOutput: true},
		},
	}
	require.NoError(t, p.SaveFlowDefinition(ctx, flow))
	require.NoError(t, p.SaveFlowDefinition(ctx, &api.FlowDefinition{
		Category: "orders", Name: "bill",
	}))
	require.NoError(t, p.SaveFlowDefinition(ctx, &api.FlowDefinition{
		Category: "admin", Name: "audit",
	}))

	loaded, err := p.LoadFlowDefinition(ctx, "orders", "ship")
	require.NoError(t, err)
	assert.Equal(t, "ship", loaded.Name)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, api.StepID("pack"), loaded.Steps[0].ID)
	assert.Equal(t, "2", loaded.Steps[0].Retry.Value)
	assert.Equal(t, api.Name("state"), loaded.Steps[0].Outputs[0].Target)

	cats, err := p.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "orders"}, cats)

	flows, err := p.Flows(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"bill", "ship"}, flows)

	_, err = p.LoadConfigDefinition(ctx, "orders", "ship", "fast")
	assert.ErrorIs(t, err, provider.ErrConfigNotFound)

	cfg := api.NewConfigDefinition("orders", "ship")
	cfg.ConfigName = "fast"
	cfg.Retry = 3
	cfg.Middleware.Group = []string{"log"}
	cfg.Data = api.Values{"state": "new"}
	require.NoError(t, p.SaveConfigDefinition(ctx, cfg))

	loadedCfg, err := p.LoadConfigDefinition(ctx, "orders", "ship", "fast")
	require.NoError(t, err)
	assert.Equal(t, 3, loadedCfg.Retry)
	assert.Equal(t, []string{"log"}, loadedCfg.Middleware.Group)
	assert.Equal(t, "new", loadedCfg.Data["state"])

	assert.ErrorIs(t,
		p.SaveFlowDefinition(ctx, &api.FlowDefinition{Name: "x"}),
		provider.ErrCategoryRequired,
	)
}

func TestLoadConfigOrDefault(t *testing.T) {
	ctx := context.Background()
	p := provider.NewMemory()

	cfg, err := provider.LoadConfigOrDefault(ctx, p, "orders", "ship", "")
	require.NoError(t, err)
	assert.Equal(t, api.DefaultConfigName, cfg.ConfigName)
	assert.Equal(t, 1, cfg.Repeat)

	_, err = provider.LoadConfigOrDefault(ctx, p, "orders", "ship", "fast")
	assert.ErrorIs(t, err, provider.ErrConfigNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	p, err := provider.Open(ctx, config.ProviderConfig{URL: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &provider.Memory{}, p)

	p, err = provider.Open(ctx, config.ProviderConfig{URL: "mem://"})
	require.NoError(t, err)
	assert.IsType(t, &provider.Blob{}, p)
	assert.NoError(t, p.Close())

	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()
	p, err = provider.Open(ctx, config.ProviderConfig{
		URL:   config.RedisProviderURL,
		Redis: config.RedisConfig{Addr: server.Addr(), Prefix: "x"},
	})
	require.NoError(t, err)
	assert.IsType(t, &provider.Redis{}, p)
	assert.NoError(t, p.Close())

	_, err = provider.Open(ctx, config.ProviderConfig{URL: "bogus"})
	assert.ErrorIs(t, err, provider.ErrUnsupportedURL)
}
