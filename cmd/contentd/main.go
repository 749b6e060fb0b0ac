package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/content-engine/internal/app"
	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := app.NewLogger(cfg.Telemetry, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopTracing, err := app.SetupTracing(cfg.Telemetry, "contentd", os.Stdout)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start content engine", "error", err)
		os.Exit(1)
	}

	if cfg.Telemetry.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	api := server.New(server.Deps{
		Jobs:       a.Jobs,
		Interlinks: a.Interlinks,
		Metrics:    promhttp.HandlerFor(a.Prometheus, promhttp.HandlerOpts{}),
		Health:     a.Health(),
		Redis:      a.Stores.Redis,
	}, server.Options{SubmitRateLimit: cfg.Server.SubmitRateLimit}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC health only, for orchestrators that health-check over gRPC.
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	var lis net.Listener
	if cfg.Server.GRPCAddr != "" {
		if lis, err = net.Listen("tcp", cfg.Server.GRPCAddr); err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		go func() {
			logger.Info("grpc health listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC serve error", "error", err)
				stop()
			}
		}()
	}

	go func() {
		logger.Info("contentd listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if lis != nil {
		grpcServer.GracefulStop()
	}
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Warn("job queue shutdown", "error", err)
	}
	if err := stopTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", "error", err)
	}
	logger.Info("stopped")
}
