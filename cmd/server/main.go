package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
	"github.com/matescarabino/gatheringTracker-server/internal/handler"
	"github.com/matescarabino/gatheringTracker-server/internal/imaging"
	"github.com/matescarabino/gatheringTracker-server/internal/infrastructure/logger"
	"github.com/matescarabino/gatheringTracker-server/internal/observability/metrics"
	"github.com/matescarabino/gatheringTracker-server/internal/observability/tracing"
	"github.com/matescarabino/gatheringTracker-server/internal/reliability/retry"
	"github.com/matescarabino/gatheringTracker-server/internal/repository"
	"github.com/matescarabino/gatheringTracker-server/internal/security/audit"
	"github.com/matescarabino/gatheringTracker-server/internal/security/auth"
	"github.com/matescarabino/gatheringTracker-server/internal/security/middleware"
	"github.com/matescarabino/gatheringTracker-server/internal/security/ratelimit"
	"github.com/matescarabino/gatheringTracker-server/internal/service"
	"github.com/matescarabino/gatheringTracker-server/pkg/cache"
	"github.com/matescarabino/gatheringTracker-server/pkg/config"
	"github.com/matescarabino/gatheringTracker-server/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting gatheringTracker server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing (no-op without OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := tracing.Init(ctx, log, "gatheringtracker-server", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Connect to PostgreSQL, retrying while the database comes up
	dbConfig := &database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}
	pool, err := retry.Do(ctx, retry.DefaultConfig(), log, "database connect",
		func(ctx context.Context) (*database.ConnectionPool, error) {
			return database.NewConnectionPool(ctx, dbConfig, log)
		})
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	db := pool.GetDB()

	// 5. Initialize repositories
	userRepo := repository.NewPostgresUserRepository(db, log)
	groupRepo := repository.NewPostgresGroupRepository(db, log)
	personRepo := repository.NewPostgresPersonRepository(db, log)
	venueRepo := repository.NewPostgresVenueRepository(db, log)
	foodRepo := repository.NewPostgresFoodRepository(db, log)
	categoryRepo := repository.NewPostgresCategoryRepository(db, log)
	gatheringRepo := repository.NewPostgresGatheringRepository(db, log)

	// 6. Initialize security components
	var verifier auth.Verifier
	if cfg.SkipAuth {
		log.Warn("SKIP_AUTH enabled, using a fixed local identity")
		verifier = auth.MockVerifier{}
	} else {
		verifier = auth.NewJWTVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer)
	}
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindowMinutes)*time.Minute)
	auditLogger := audit.NewLogger(log)
	codeCache := cache.New[*domain.Group]()

	// 7. Initialize services
	photoOpts := imaging.Options{MaxWidth: cfg.PhotoMaxWidth, JPEGQuality: cfg.PhotoJPEGQuality}
	authService := service.NewAuthService(userRepo, groupRepo, verifier, log)
	catalogService := service.NewCatalogService(personRepo, venueRepo, foodRepo, categoryRepo, log)
	gatheringService := service.NewGatheringService(gatheringRepo, photoOpts, log)

	// 8. Initialize handlers
	authHandler := handler.NewAuthHandler(authService, auditLogger, log)
	personHandler := handler.NewPersonHandler(catalogService, log)
	venueHandler := handler.NewVenueHandler(catalogService, cfg.DefaultPageLimit, log)
	foodHandler := handler.NewFoodHandler(catalogService, log)
	categoryHandler := handler.NewCategoryHandler(catalogService, log)
	gatheringHandler := handler.NewGatheringHandler(gatheringService, auditLogger, cfg.UploadDir, cfg.DefaultPageLimit, log)
	healthHandler := handler.NewHealthHandler(pool, cfg.Environment, cfg.CORSAllowedOrigins, log)

	// 9. Routes. Data routes run behind RequireGroup; the auth surface and
	// operational endpoints stay outside the tenant scope.
	scope := middleware.RequireGroup(groupRepo, codeCache, auditLogger, log)
	scoped := func(h http.HandlerFunc) http.Handler { return scope(h) }

	mux := http.NewServeMux()

	mux.HandleFunc("GET /", healthHandler.Root)
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	mux.HandleFunc("POST /api/auth/sync", authHandler.Sync)
	mux.HandleFunc("POST /api/auth/groups", authHandler.CreateGroup)
	mux.HandleFunc("PUT /api/auth/groups", authHandler.UpdateGroup)
	mux.HandleFunc("POST /api/auth/groups/validate", authHandler.ValidateCode)

	mux.Handle("GET /api/personas", scoped(personHandler.List))
	mux.Handle("POST /api/personas", scoped(personHandler.Create))
	mux.Handle("GET /api/personas/{id}", scoped(personHandler.Get))
	mux.Handle("PUT /api/personas/{id}", scoped(personHandler.Update))
	mux.Handle("DELETE /api/personas/{id}", scoped(personHandler.Delete))

	mux.Handle("GET /api/sedes", scoped(venueHandler.List))
	mux.Handle("POST /api/sedes", scoped(venueHandler.Create))
	mux.Handle("GET /api/sedes/{id}", scoped(venueHandler.Get))
	mux.Handle("PUT /api/sedes/{id}", scoped(venueHandler.Update))
	mux.Handle("DELETE /api/sedes/{id}", scoped(venueHandler.Delete))

	mux.Handle("GET /api/comidas", scoped(foodHandler.List))
	mux.Handle("POST /api/comidas", scoped(foodHandler.Create))
	mux.Handle("GET /api/comidas/{id}", scoped(foodHandler.Get))
	mux.Handle("PUT /api/comidas/{id}", scoped(foodHandler.Update))
	mux.Handle("DELETE /api/comidas/{id}", scoped(foodHandler.Delete))

	// Legacy category endpoints are global, not group-scoped.
	mux.HandleFunc("GET /api/categorias", categoryHandler.List)
	mux.HandleFunc("POST /api/categorias", categoryHandler.Create)

	mux.Handle("GET /api/juntadas", scoped(gatheringHandler.List))
	mux.Handle("POST /api/juntadas", scoped(gatheringHandler.Create))
	mux.Handle("GET /api/juntadas/{id}", scoped(gatheringHandler.Get))
	mux.Handle("PUT /api/juntadas/{id}", scoped(gatheringHandler.Update))
	mux.Handle("DELETE /api/juntadas/{id}", scoped(gatheringHandler.Delete))
	mux.Handle("GET /api/estadisticas", scoped(gatheringHandler.Statistics))

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, "+middleware.GroupCodeHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> metrics -> tracing -> CORS -> rate limit -> identity
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			otelhttp.NewHandler(
				middleware.RateLimit(rateLimiter, log)(
					middleware.Identify(verifier, userRepo, log)(handlerWithCORS),
				),
				"http.server",
			),
		),
		log,
	)

	// 10. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Bool("skip_auth", cfg.SkipAuth),
		slog.Int("rate_limit", cfg.RateLimitRequests),
		slog.Int("rate_limit_window_minutes", cfg.RateLimitWindowMinutes),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	rateLimiter.Stop()
	log.Info("server stopped")
}

// withRequestID attaches a request ID to the context and response headers and
// logs each completed request.
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := audit.WithRequestID(r.Context(), reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
