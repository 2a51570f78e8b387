// Package main is the schema registry core's node entrypoint: it wires
// together the log-backed store, master election, id allocation, and
// registry service described in spec §4, then serves only the metrics
// endpoint — the REST API that would sit in front of Registry is
// explicitly out of scope for this core (spec §1).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schemacore/registry/internal/allocator"
	"github.com/schemacore/registry/internal/cluster"
	"github.com/schemacore/registry/internal/config"
	"github.com/schemacore/registry/internal/coordinator"
	"github.com/schemacore/registry/internal/coordinator/memcoord"
	"github.com/schemacore/registry/internal/coordinator/zk"
	"github.com/schemacore/registry/internal/dialect/avro"
	"github.com/schemacore/registry/internal/elector"
	"github.com/schemacore/registry/internal/forwarder"
	"github.com/schemacore/registry/internal/logclient"
	"github.com/schemacore/registry/internal/logclient/kafka"
	"github.com/schemacore/registry/internal/logclient/memlog"
	"github.com/schemacore/registry/internal/logstore"
	"github.com/schemacore/registry/internal/metrics"
	"github.com/schemacore/registry/internal/registry"
	"github.com/schemacore/registry/internal/wire"
)

var (
	version   = cluster.Version
	commit    = cluster.GitCommit
	buildTime = cluster.BuildTime
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	devMode := flag.Bool("dev", false, "Use an in-process coordinator and log instead of ZooKeeper/Kafka")
	metricsAddr := flag.String("metrics-addr", ":9090", "Address to serve /metrics on")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("registry-node %s (commit: %s, built: %s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if os.Getenv("SCHEMA_REGISTRY_LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting registry node",
		"version", version,
		"cluster", cfg.Host.ClusterName,
		"address", cfg.Address(),
		"master_eligible", cfg.Host.MasterEligibility,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var coord coordinator.Coordinator
	var logClient logclient.LogClient

	if *devMode {
		logger.Warn("running with in-process coordinator and log client (-dev); not for production use")
		coord = memcoord.New()
		logClient = memlog.New()
	} else {
		zkCoord, err := zk.Connect(cfg.ZK.Servers, cfg.Kafka.ZKSessionTimeout())
		if err != nil {
			logger.Error("failed to connect to coordinator", "error", err)
			os.Exit(1)
		}
		coord = zkCoord

		kc, err := kafka.New(kafka.Config{
			Brokers: []string{cfg.Kafka.ConnectionURL},
			Topic:   cfg.Kafka.Topic,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to log", "error", err)
			os.Exit(1)
		}
		logClient = kc
	}

	store := logstore.New(logstore.Config{
		BootstrapTimeout: cfg.Kafka.BootstrapTimeout(),
		WriteTimeout:     cfg.Kafka.WriteTimeout(),
	}, logClient, wire.JSONSerializer{}, logger)

	if err := store.Init(ctx); err != nil {
		logger.Error("failed to bootstrap log store", "error", err)
		os.Exit(1)
	}

	identity := cluster.NewInfo(cfg.Host.Name, cfg.Host.Port, cfg.Host.MasterEligibility)

	fwd := forwarder.New(cfg.Kafka.WriteTimeout())
	d := avro.New()

	newAllocator := func(ctx context.Context, coord coordinator.Coordinator, maxIdInStore int32, logger *slog.Logger) (interface {
		Next(ctx context.Context, maxIdInStore int32) (int32, error)
	}, error) {
		a := allocator.New(coord, logger)
		if err := a.Prime(ctx, maxIdInStore); err != nil {
			return nil, err
		}
		return a, nil
	}

	reg := registry.New(registry.Config{
		SelfNodeID:   identity.Identity().NodeID,
		DefaultLevel: wire.CompatibilityLevel(cfg.Avro.CompatibilityLevel),
	}, store, d, coord, fwd, m, newAllocator, logger)

	e := elector.New(coord, identity.Identity(), reg, logger)
	electorErr := make(chan error, 1)
	go func() {
		electorErr <- e.Run(ctx)
	}()

	metricsServer := &http.Server{Addr: *metricsAddr, Handler: m.Handler()}
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			metricsErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-electorErr:
		if err != nil {
			logger.Error("elector stopped", "error", err)
		}
	case err := <-metricsErr:
		logger.Error("metrics server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("log store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
