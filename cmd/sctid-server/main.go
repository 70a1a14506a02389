// sctid-server 对外提供 SNOMED CT 标识符预留服务
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ceyewan/sctid-kit/clog"
	"github.com/ceyewan/sctid-kit/idpool"
	"github.com/ceyewan/sctid-kit/metrics"
	"github.com/ceyewan/sctid-kit/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := clog.Init(ctx, config.Log, clog.WithNamespace("sctid-server")); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	logger := clog.Namespace("main")

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("failed to register metrics", clog.Err(err))
	}

	provider, err := idpool.New(ctx, config.Pool)
	if err != nil {
		logger.Fatal("failed to initialise identifier pools", clog.Err(err))
	}
	defer provider.Close()

	go idpool.RunMaintenance(ctx, provider, config.Pool.MaintenanceInterval)

	if config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              config.Addr,
		Handler:           server.New(provider).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", clog.String("addr", config.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", clog.Err(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", clog.Err(err))
	}
}
