package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thomas-mindruptive/pure-svelte-sub003/catalog"
	"github.com/thomas-mindruptive/pure-svelte-sub003/config"
	"github.com/thomas-mindruptive/pure-svelte-sub003/daos"
	"github.com/thomas-mindruptive/pure-svelte-sub003/handlers"
	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

func main() {
	cfg := config.Cfg

	switch cfg.Environment {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	log := tools.NewLogger("catalog", cfg.LogLevel)
	defer func() { _ = tools.Cleanup(log) }()
	daos.SetLogger(log.With(tools.String("component", "daos")))

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", tools.Error(err))
		_ = tools.Cleanup(log)
		os.Exit(1)
	}
}

func run(cfg config.Config, log tools.Logger) error {
	log.Info("starting",
		tools.String("port", cfg.Port),
		tools.String("driver", cfg.DBDriver),
		tools.String("environment", cfg.Environment),
		tools.Int("max_query_rows", cfg.MaxQueryRows),
		tools.String("pagination_policy", cfg.PaginationPolicy),
		tools.Any("raw_where_enabled", cfg.RawWhereEnabled),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := daos.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("close database", tools.Error(err))
		}
	}()

	if cfg.MigrateOnStart {
		if err := catalog.Migrate(db.Client.DB, db.Dialect); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	err = db.VerifySchema(ctx, catalog.Entities())
	cancel()
	if err != nil {
		return err
	}

	queries, err := catalog.NewQueryConfig(db.Dialect, query.Limits{
		MaxRows:           cfg.MaxQueryRows,
		DefaultLimit:      cfg.DefaultLimit,
		PaginationPolicy:  query.PaginationPolicy(cfg.PaginationPolicy),
		MaxConditionDepth: cfg.MaxConditionDepth,
		MaxInListSize:     cfg.MaxInListSize,
	})
	if err != nil {
		return err
	}

	h := handlers.New(db, queries, log.With(tools.String("component", "http")), handlers.Options{
		RequestTimeout:  time.Duration(cfg.RequestTimeout) * time.Second,
		MaxRequestBody:  cfg.MaxRequestBody,
		RawWhereEnabled: cfg.RawWhereEnabled,
	})

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", tools.String("addr", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case sig := <-quit:
		log.Info("shutting down", tools.String("signal", sig.String()))
	}

	// Outstanding requests get 10 seconds to complete.
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	log.Info("server stopped")
	return nil
}
