package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"milesofsmiles/api/internal/app"
)

func init() {
	rootCmd.AddCommand(serveCmd())
}

func serveCmd() *cobra.Command {
	var migrate bool

	command := &cobra.Command{
		Use:   "serve",
		Short: "run the content API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, migrate)
		},
	}
	command.Flags().BoolVar(&migrate, "migrate", true, "apply remote schema migrations before serving")
	return command
}

func serve(ctx context.Context, migrate bool) error {
	cfg := appConfig
	rt, err := openRuntime(ctx, cfg, migrate)
	if err != nil {
		return err
	}
	defer rt.Close()

	service := app.New(cfg, rt.local, rt.remote, rt.bus, rt.search)
	defer service.Close()
	service.Start(context.WithoutCancel(ctx))

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.StreamRateLimit)
	defer httpServer.Close()
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{"addr": cfg.Addr, "origin": service.Origin()}).Info("content API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("shutdown error")
	}
	return nil
}
