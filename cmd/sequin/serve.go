package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	app "github.com/kode4food/sequin"
	"github.com/kode4food/sequin/internal/server"
	"github.com/kode4food/sequin/pkg/log"
)

type service struct {
	*sequin
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP Run API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSequin(os.Stdout)
			if err != nil {
				return err
			}
			svc := &service{
				sequin: s,
				quit:   make(chan os.Signal, 1),
			}
			return svc.run(cmd.Context())
		},
	}
}

func (s *service) run(ctx context.Context) error {
	slog.Info("Sequin starting",
		slog.String("log_level", s.cfg.LogLevel))

	if err := s.initialize(ctx); err != nil {
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *service) startServer() {
	gin.SetMode(gin.ReleaseMode)
	s.apiServer = server.NewServer(s.engine, app.Version)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: s.apiServer.SetupRoutes(),
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
			s.quit <- syscall.SIGTERM
		}
	}()
}

func (s *service) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()
	s.close()

	slog.Info("Server exited")
}
