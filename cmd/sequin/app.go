package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	app "github.com/kode4food/sequin"
	"github.com/kode4food/sequin/internal/archive"
	"github.com/kode4food/sequin/internal/builtin"
	"github.com/kode4food/sequin/internal/config"
	"github.com/kode4food/sequin/internal/engine"
	"github.com/kode4food/sequin/internal/provider"
	"github.com/kode4food/sequin/pkg/log"
	"github.com/kode4food/sequin/pkg/util/call"
)

// sequin owns the long-lived components shared by every command
type sequin struct {
	cfg      *config.Config
	provider provider.Provider
	archive  *archive.BlobArchive
	engine   *engine.Engine
}

const archivePrefix = "results/"

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrOpenProvider   = errors.New("failed to open provider")
	ErrOpenArchive    = errors.New("failed to open archive")
	ErrCreateEngine   = errors.New("failed to create engine")
	ErrCapabilityInit = errors.New("failed to register capabilities")
)

func newSequin(logOut io.Writer) (*sequin, error) {
	cfg := config.NewDefaultConfig()
	if err := call.Perform(cfg.LoadFromEnv, cfg.Validate); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	s := &sequin{cfg: cfg}
	s.setupLogging(logOut)
	return s, nil
}

func (s *sequin) setupLogging(w io.Writer) {
	level := log.ParseLevel(s.cfg.LogLevel)
	logger := log.New(w, log.Service{
		Name:    app.Name,
		Env:     os.Getenv("ENV"),
		Version: app.Version,
	}, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Debug("Configuration loaded",
		slog.String("provider_url", s.cfg.Provider.URL),
		slog.String("archive_url", s.cfg.ArchiveURL),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

// initialize opens the provider and the optional archive, then creates and
// starts the engine. Anything opened is closed again on failure
func (s *sequin) initialize(ctx context.Context) error {
	err := call.Perform(
		call.WithArg(s.openProvider, ctx),
		call.WithArg(s.openArchive, ctx),
		s.initializeEngine,
	)
	if err != nil {
		s.close()
		return err
	}
	s.engine.Start()
	return nil
}

func (s *sequin) openProvider(ctx context.Context) error {
	p, err := provider.Open(ctx, s.cfg.Provider)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenProvider, err)
	}
	s.provider = p
	return nil
}

func (s *sequin) openArchive(ctx context.Context) error {
	if s.cfg.ArchiveURL == "" {
		return nil
	}
	arc, err := archive.NewBlobArchive(ctx, s.cfg.ArchiveURL, archivePrefix)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenArchive, err)
	}
	s.archive = arc
	return nil
}

func (s *sequin) initializeEngine() error {
	caps, err := builtin.NewRegistries()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCapabilityInit, err)
	}

	deps := engine.Dependencies{
		Capabilities: caps,
		Provider:     s.provider,
	}
	if s.archive != nil {
		deps.Archive = s.archive
	}

	eng, err := engine.New(s.cfg, deps)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateEngine, err)
	}
	s.engine = eng
	return nil
}

func (s *sequin) close() {
	if s.engine != nil {
		if err := s.engine.Stop(); err != nil {
			slog.Error("Engine shutdown failed", log.Error(err))
		}
	}
	if s.archive != nil {
		_ = s.archive.Close()
	}
	if s.provider != nil {
		_ = s.provider.Close()
	}
}
