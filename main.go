package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ngmigrate/config"
	"ngmigrate/logging"
)

var (
	configPath   string
	portOverride int
	fromVersion  int
	toVersion    int
	forceRefresh bool
)

var rootCmd = &cobra.Command{
	Use:   "ngmigrate",
	Short: "Angular migration assistant backend",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(configPath); err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		logging.InitLogger(config.AppConfig.Logging)
		return nil
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.AppConfig
		if portOverride > 0 {
			cfg.Server.Port = portOverride
		}

		srv, cleanup, err := NewServerFromConfig(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runHTTP(ctx, srv, cfg.Server)
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Fetch (or read from cache) the migration rules for a version pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, cleanup, err := NewServerFromConfig(config.AppConfig)
		if err != nil {
			return err
		}
		defer cleanup()

		set, err := srv.rules.GetRules(cmd.Context(), fromVersion, toVersion, forceRefresh)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(set)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: search upwards from the working directory)")

	serveCmd.Flags().IntVar(&portOverride, "port", 0, "listen port (overrides server.port)")

	rulesCmd.Flags().IntVar(&fromVersion, "from", 0, "current Angular major version")
	rulesCmd.Flags().IntVar(&toVersion, "to", 0, "target Angular major version")
	rulesCmd.Flags().BoolVar(&forceRefresh, "refresh", false, "ignore the cache and ask the model again")
	_ = rulesCmd.MarkFlagRequired("from")
	_ = rulesCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(serveCmd, rulesCmd)
}

// runHTTP serves until ctx is cancelled, then drains in-flight requests.
func runHTTP(ctx context.Context, srv *Server, cfg config.ServerConfig) error {
	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     srv.Routes(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Starting server on port %s...", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
