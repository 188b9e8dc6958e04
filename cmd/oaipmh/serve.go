package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/totegamma/oaipmh/internal/format"
	"github.com/totegamma/oaipmh/internal/infra/metrics"
	"github.com/totegamma/oaipmh/internal/infra/tracing"
	"github.com/totegamma/oaipmh/internal/present/rest"
	"github.com/totegamma/oaipmh/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve OAI-PMH over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer deps.Close()
	conf := deps.config

	if conf.Server.EnableTrace {
		shutdown, err := tracing.Setup(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	observer, err := metrics.NewPrometheusObserver("oaipmh", prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	server := usecase.NewServerUsecase(
		deps.settings,
		deps.tokens,
		deps.tracker,
		deps.records,
		format.New(),
		usecase.WithObserver(observer),
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware(tracing.ServiceName))
	}

	handler := rest.NewHandler(server, conf.Server.BaseURL, prometheus.DefaultGatherer, deps.healthChecks())
	handler.RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(
			"OAI-PMH server starting",
			slog.String("listen", conf.Server.Listen),
			slog.String("resumptionBackend", conf.Server.ResumptionBackend),
			slog.String("module", "main"),
		)
		if err := e.Start(conf.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
