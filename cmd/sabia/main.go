// Command sabia runs the UEMA WhatsApp assistant: WAHA webhook in,
// menu/router/agent pipeline, WAHA sendText out.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"golang.org/x/sync/errgroup"

	"github.com/uemahub/sabia/db"
	"github.com/uemahub/sabia/internal/agent"
	"github.com/uemahub/sabia/internal/config"
	"github.com/uemahub/sabia/internal/log"
	"github.com/uemahub/sabia/internal/memory"
	"github.com/uemahub/sabia/internal/pipeline"
	"github.com/uemahub/sabia/internal/provider"
	"github.com/uemahub/sabia/internal/retrieval"
	"github.com/uemahub/sabia/internal/waha"
	"github.com/uemahub/sabia/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sabia:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := log.New(log.Config{Level: parseLevel(cfg.LogLevel), JSON: cfg.LogJSON})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.Retrieval.PostgresDSN, logger); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Retrieval.PostgresDSN)
	if err != nil {
		return fmt.Errorf("parsing postgres DSN: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	store, err := memory.Open(memory.Config{
		Dir:           cfg.Memory.BadgerDir,
		HistoryWindow: cfg.Memory.HistoryWindow,
		HistoryTTL:    cfg.Memory.HistoryTTL,
		ContextTTL:    cfg.Memory.ContextTTL,
		Logger:        logger.With("component", "memory"),
	})
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close session store", "error", err)
		}
	}()

	gcDone := make(chan struct{})
	defer close(gcDone)
	go store.RunGC(gcDone)

	prov, err := provider.NewClient(provider.Config{
		APIKey:      cfg.Agent.APIKey,
		BaseURL:     cfg.Agent.BaseURL,
		Model:       cfg.Agent.Model,
		Temperature: cfg.Agent.Temperature,
		Logger:      logger.With("component", "provider"),
	})
	if err != nil {
		return fmt.Errorf("creating reasoning provider: %w", err)
	}

	index := retrieval.NewIndex(pool, logger.With("component", "retrieval"))
	embedder := retrieval.NewEmbedder(cfg.Retrieval.EmbeddingKey, cfg.Retrieval.EmbeddingURL, cfg.Retrieval.EmbeddingModel)
	tools := retrieval.NewToolset(index, embedder, logger.With("component", "retrieval"))

	orch := agent.New(agent.Config{
		Provider:      prov,
		Tools:         tools,
		History:       store,
		MaxIterations: cfg.Agent.MaxIterations,
		Budget:        cfg.Agent.Timeout,
		MinAnswerLen:  cfg.MinAnswerLen,
		Logger:        logger.With("component", "agent"),
	})

	sender := waha.NewClient(waha.Config{
		BaseURL: cfg.WAHA.BaseURL,
		Session: cfg.WAHA.Session,
		APIKey:  cfg.WAHA.APIKey,
		Logger:  logger.With("component", "waha"),
	})
	if status, err := sender.SessionStatus(ctx); err != nil {
		logger.Warn("waha session unreachable", "error", err)
	} else {
		logger.Info("waha session", "session", cfg.WAHA.Session, "status", status)
	}

	pipe := pipeline.New(store, orch, sender, logger.With("component", "pipeline"))
	handler := webhook.New(pipe, cfg.WAHA.Session, logger.With("component", "webhook"))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
