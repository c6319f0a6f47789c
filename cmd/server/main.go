package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atlekbai/document_registry/internal/config"
	"github.com/atlekbai/document_registry/internal/db"
	"github.com/atlekbai/document_registry/internal/filter"
	"github.com/atlekbai/document_registry/internal/handler"
	"github.com/atlekbai/document_registry/internal/logging"
	"github.com/atlekbai/document_registry/internal/middleware"
	"github.com/atlekbai/document_registry/internal/schema"
	"github.com/atlekbai/document_registry/internal/server"
	"github.com/atlekbai/document_registry/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Migrate {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	cache := schema.NewCache()
	if err := cache.Load(ctx, pool); err != nil {
		logger.Fatal("failed to load schema cache", zap.Error(err))
	}
	logger.Info("schema cache loaded", zap.Int("schemas", cache.Count()))

	compiler := filter.NewCompiler(cache,
		filter.WithStrict(cfg.StrictFilters),
		filter.WithLogger(logger.Named("filter")),
	)
	logger.Info("filter compiler ready",
		zap.Bool("strict", compiler.Strict()),
		zap.String("documentsTable", compiler.DocumentsTable()),
	)
	documents := service.NewDocumentService(pool, cache, compiler, logger.Named("documents"))

	router := mux.NewRouter()
	router.Use(middleware.Recovery(logger), middleware.Logging(logger), middleware.Metrics)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	interceptors := []connect.Interceptor{
		server.LoggingInterceptor(logger.Named("rpc")),
	}
	server.Mount(router, []server.ConnectService{documents}, interceptors...)

	handler.New(documents, logger.Named("http")).Routes(router)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: cors.New(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"*"},
		}).Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.Addr()))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
