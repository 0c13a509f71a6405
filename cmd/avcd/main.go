// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/avc-cache/avc/lib/avc"
	"github.com/avc-cache/avc/lib/avcaudit"
	"github.com/avc-cache/avc/lib/avcss"
	"github.com/avc-cache/avc/lib/clock"
	"github.com/avc-cache/avc/lib/config"
	"github.com/avc-cache/avc/lib/cron"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var showVersion bool

	flagSet := pflag.NewFlagSet("avcd", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to avcd.yaml config file (falls back to AVCD_CONFIG)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Println("avcd (development build)")
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureAuditDir(); err != nil {
		return err
	}

	classMap, err := avcss.LoadClassMapFile(cfg.Policy.ClassMapFile)
	if err != nil {
		return fmt.Errorf("loading class map: %w", err)
	}

	server := avcss.NewServer(classMap)
	server.SetEnforcing(cfg.Cache.Enforcing)
	if err := loadPolicyFile(cfg.Policy.RulesFile, server); err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	rot := newRotatingServer(server)

	sink, err := avcaudit.NewSink(avcaudit.Config{
		ClassMap:        classMap,
		Resolve:         avcaudit.ContextResolver(rot.SIDToContext),
		RingCapacity:    cfg.Audit.RingCapacity,
		Dir:             cfg.Audit.Dir,
		MaxSegmentBytes: cfg.Audit.MaxSegmentBytes,
		RecipientKeys:   cfg.Audit.RecipientKeys,
		QueueCapacity:   cfg.Audit.QueueCapacity,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("starting audit sink: %w", err)
	}
	defer sink.Close()

	realClock := clock.Real()
	cache, err := avc.New(avc.Config{
		SecurityServer: rot,
		AuditSink:      sink,
		Clock:          realClock,
		Logger:         logger,
		CacheThreshold: cfg.Cache.Threshold,
		ReclaimBatch:   cfg.Cache.ReclaimBatch,
	})
	if err != nil {
		return fmt.Errorf("constructing cache: %w", err)
	}

	schedule, err := cron.Parse(cfg.Policy.ReloadSchedule)
	if err != nil {
		return fmt.Errorf("parsing policy.reload_schedule: %w", err)
	}
	poller := newPolicyPoller(cfg.Policy.ClassMapFile, cfg.Policy.RulesFile, realClock, logger, cache, rot)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go poller.Run(ctx, schedule)

	var debugServer *http.Server
	if cfg.Debug.ListenAddr != "" {
		debugServer = newDebugServer(cfg.Debug.ListenAddr, cache, sink, poller)
		go func() {
			logger.Info("avcd: debug server listening", "addr", cfg.Debug.ListenAddr)
			if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("avcd: debug server failed", "error", err)
			}
		}()
	}

	logger.Info("avcd: started",
		"environment", cfg.Environment,
		"cache_threshold", cfg.Cache.Threshold,
		"enforcing", cfg.Cache.Enforcing,
	)

	<-ctx.Done()
	logger.Info("avcd: shutting down")

	if debugServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		debugServer.Shutdown(shutdownCtx)
	}
	cache.Disable()
	return nil
}

// loadConfig loads configuration from explicitPath if given, otherwise
// from the AVCD_CONFIG environment variable via config.Load.
func loadConfig(explicitPath string) (*config.Config, error) {
	if explicitPath != "" {
		return config.LoadFile(explicitPath)
	}
	return config.Load()
}
