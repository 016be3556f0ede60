package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kestrelhq/agenthost/internal/di"
	irp "github.com/kestrelhq/agenthost/internal/ro"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agenthost server",
	Long: `Start the server that accepts completion requests, hosts per-session
agents, and routes calls to configured backend providers.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath := resolveConfigPath()

	container, err := di.NewContainer(configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to build container")
		return err
	}

	// Resolving the config service loads and validates the file.
	cfgSvc, err := di.Invoke[*di.ConfigService](container)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		return err
	}

	loggerSvc, err := di.Invoke[*di.LoggerService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize logger")
		return err
	}

	log.Logger = *loggerSvc.Logger
	zerolog.DefaultContextLogger = loggerSvc.Logger

	proberSvc, err := di.Invoke[*di.ProberService](container)
	if err != nil {
		return err
	}

	registrySvc, err := di.Invoke[*di.RegistryService](container)
	if err != nil {
		return err
	}

	serverSvc, err := di.Invoke[*di.ServerService](container)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfgSvc.StartWatching(runCtx)
	proberSvc.Start()
	registrySvc.Start()

	serveErr := make(chan error, 1)
	go func() {
		if err := serverSvc.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	signals := make(chan string, 1)
	go func() {
		sig, err := irp.WaitForShutdown(runCtx)
		if err != nil {
			return
		}
		signals <- sig.String()
	}()

	log.Info().
		Str("listen", serverSvc.Server.Addr()).
		Int("providers", len(cfgSvc.Get().Providers)).
		Msg("starting agenthost")

	var runErr error
	select {
	case sig := <-signals:
		log.Info().Str("signal", sig).Msg("shutting down")
	case err, ok := <-serveErr:
		if ok && err != nil {
			log.Error().Err(err).Msg("server error")
			runErr = err
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := container.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
		if runErr == nil {
			runErr = err
		}
	}

	log.Info().Msg("server stopped")

	return runErr
}
