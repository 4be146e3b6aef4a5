package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/KunalSalunkhe12/heartbeat.chat/internal/logger"
	"github.com/KunalSalunkhe12/heartbeat.chat/internal/server"
)

const (
	defaultListenAddress = ":8080"

	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server that drives the assistant",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer log.Sync() //nolint:errcheck

		config, err := getConfig()
		if err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		components, err := buildApp(ctx, config, log)
		if err != nil {
			return err
		}
		defer components.store.Close()

		address := defaultListenAddress
		if config.Server != nil && config.Server.Address != "" {
			address = config.Server.Address
		}

		srv := &http.Server{
			Addr:              address,
			Handler:           server.New(components.machine, log),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("listening for webhook events", zap.String("address", address))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
			log.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutting down server: %w", err)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
