package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nichesupply/listingsearch/internal/config"
	"github.com/nichesupply/listingsearch/internal/db"
	dbBolt "github.com/nichesupply/listingsearch/internal/db/bolt"
	dbRedis "github.com/nichesupply/listingsearch/internal/db/redis"
	"github.com/nichesupply/listingsearch/internal/domain"
	logpkg "github.com/nichesupply/listingsearch/internal/logger"
	"github.com/nichesupply/listingsearch/internal/metrics"
	"github.com/nichesupply/listingsearch/internal/repository/enccache"
	listingrepo "github.com/nichesupply/listingsearch/internal/repository/listing"
	chiTransport "github.com/nichesupply/listingsearch/internal/transport/chi"
	openaiEnc "github.com/nichesupply/listingsearch/internal/transport/openai"
	encodinguc "github.com/nichesupply/listingsearch/internal/usecase/encoding"
	healthuc "github.com/nichesupply/listingsearch/internal/usecase/health"
	indexeruc "github.com/nichesupply/listingsearch/internal/usecase/indexer"
	searchuc "github.com/nichesupply/listingsearch/internal/usecase/search"
	"github.com/nichesupply/listingsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting listingsearch sidecar",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("http_socket", cfg.HTTP.Socket),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// Create database store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "bolt":
		store, err = dbBolt.NewStore(dbBolt.Config{
			Path: cfg.Database.Path,
		})
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEncoderMetrics()
	metrics.RegisterSearchMetrics()

	// Build the encoder decorator chain
	encoder, baseEncoder := buildEncoder(cfg, store, logger)
	logger.Info("Encoder created",
		zap.String("base_url", cfg.Encoder.BaseURL),
		zap.String("model", cfg.Encoder.Model),
		zap.Int("dimensions", cfg.Encoder.Dimensions),
		zap.Bool("cache", cfg.Encoder.CacheTTLSec > 0),
	)

	// Listing repository owns the single index
	repo := listingrepo.New(store, listingrepo.Config{
		IndexName: cfg.Index.Name,
		KeyPrefix: cfg.Storage.KeyPrefix,
		VectorDim: cfg.Encoder.Dimensions,
		HNSW: listingrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
	}, logger)
	if err := repo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure listing index", zap.Error(err))
	}

	// Use case services
	searchSvc := searchuc.New(repo, encoder, logger)
	indexSvc := indexeruc.New(repo, encoder, logger)

	// Health probes the raw provider, not the decorated chain: a cache
	// hit must not mask a dead encoder.
	healthSvc := healthuc.New(store, baseEncoder, repo)

	// Chi server
	server := chiTransport.NewServer(searchSvc, indexSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.ServiceTokenMiddleware(cfg.Auth.ServiceToken))
	r.Use(metrics.Middleware())
	server.Routes(r)

	srv := &http.Server{
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		if cfg.HTTP.Socket != "" {
			logger.Info("Starting HTTP server", zap.String("socket", cfg.HTTP.Socket))
			ln, err := listenUnix(cfg.HTTP.Socket)
			if err != nil {
				logger.Fatal("Failed to listen on unix socket", zap.Error(err))
			}
			if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
				logger.Fatal("HTTP server error", zap.Error(err))
			}
			return
		}

		addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
		srv.Addr = addr
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	if cfg.HTTP.Socket != "" {
		_ = os.Remove(cfg.HTTP.Socket)
	}

	logger.Info("Server stopped gracefully")
}

// buildEncoder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
// The raw provider is returned separately for health probing.
func buildEncoder(cfg config.Config, store db.Store, logger *zap.Logger) (domain.Encoder, *openaiEnc.Encoder) {
	base := openaiEnc.NewEncoder(&openaiEnc.Config{
		APIKey:     cfg.Encoder.APIKey,
		BaseURL:    cfg.Encoder.BaseURL,
		Model:      cfg.Encoder.Model,
		Dimensions: cfg.Encoder.Dimensions,
		Logger:     logger,
	})

	var encoder domain.Encoder = base
	if cfg.Encoder.CacheTTLSec > 0 {
		encoder = enccache.New(
			base, store, cfg.Encoder.Model,
			time.Duration(cfg.Encoder.CacheTTLSec)*time.Second,
			metrics.EncoderCacheTotal, logger,
		)
	}

	return encodinguc.NewInstrumentedEncoder(encoder, cfg.Encoder.Model, logger), base
}

// listenUnix binds the Unix domain socket, clearing a stale file left by an
// unclean shutdown. The socket is opened world-writable so the marketplace
// backend can reach it across container boundaries.
func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o666); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return ln, nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"error": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
