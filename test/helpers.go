// Package test wires the full HTTP stack over an in-memory SQLite database
// for end-to-end exercises: middleware chain, handlers, services and the real
// SQL repositories.
package test

import (
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
	"github.com/matescarabino/gatheringTracker-server/internal/handler"
	"github.com/matescarabino/gatheringTracker-server/internal/imaging"
	"github.com/matescarabino/gatheringTracker-server/internal/repository"
	"github.com/matescarabino/gatheringTracker-server/internal/security/audit"
	"github.com/matescarabino/gatheringTracker-server/internal/security/auth"
	"github.com/matescarabino/gatheringTracker-server/internal/security/middleware"
	"github.com/matescarabino/gatheringTracker-server/internal/security/ratelimit"
	"github.com/matescarabino/gatheringTracker-server/internal/service"
	"github.com/matescarabino/gatheringTracker-server/pkg/cache"
)

const testSchema = `
CREATE TABLE users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL DEFAULT '',
    avatar_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE groups (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    code TEXT NOT NULL UNIQUE,
    admin_id TEXT NOT NULL REFERENCES users(id),
    min_attendances_new_gathering INTEGER NOT NULL DEFAULT 0,
    max_cooks INTEGER NOT NULL DEFAULT 2,
    max_shoppers INTEGER NOT NULL DEFAULT 2,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE persons (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    nickname TEXT NOT NULL DEFAULT '',
    birth_date DATE,
    group_id INTEGER NOT NULL REFERENCES groups(id),
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE venues (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    owner_person_id INTEGER REFERENCES persons(id),
    group_id INTEGER NOT NULL REFERENCES groups(id),
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL
);

CREATE TABLE foods (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    food_type TEXT NOT NULL,
    group_id INTEGER NOT NULL REFERENCES groups(id),
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE gatherings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    held_on TIMESTAMP NOT NULL,
    photo TEXT NOT NULL DEFAULT '',
    venue_id INTEGER NOT NULL REFERENCES venues(id),
    group_id INTEGER NOT NULL REFERENCES groups(id),
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE gathering_foods (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    gathering_id INTEGER NOT NULL REFERENCES gatherings(id),
    food_id INTEGER NOT NULL REFERENCES foods(id),
    meal_category TEXT NOT NULL
);

CREATE TABLE attendances (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    gathering_id INTEGER NOT NULL REFERENCES gatherings(id),
    person_id INTEGER NOT NULL REFERENCES persons(id),
    washed BOOLEAN NOT NULL DEFAULT FALSE,
    cooked BOOLEAN NOT NULL DEFAULT FALSE,
    shopped BOOLEAN NOT NULL DEFAULT FALSE,
    dessert BOOLEAN NOT NULL DEFAULT FALSE
);
`

// TestServer is the assembled application over an in-memory database.
type TestServer struct {
	Server *httptest.Server
	DB     *sql.DB
}

// NewTestServer builds the same stack cmd/server wires, swapping PostgreSQL
// for SQLite and the JWT verifier for the fixed local identity.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("failed to apply test schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	userRepo := repository.NewPostgresUserRepository(db, log)
	groupRepo := repository.NewPostgresGroupRepository(db, log)
	personRepo := repository.NewPostgresPersonRepository(db, log)
	venueRepo := repository.NewPostgresVenueRepository(db, log)
	foodRepo := repository.NewPostgresFoodRepository(db, log)
	categoryRepo := repository.NewPostgresCategoryRepository(db, log)
	gatheringRepo := repository.NewPostgresGatheringRepository(db, log)

	verifier := auth.MockVerifier{}
	rateLimiter := ratelimit.NewLimiter(1000, time.Minute)
	t.Cleanup(rateLimiter.Stop)
	auditLogger := audit.NewLogger(log)
	codeCache := cache.New[*domain.Group]()

	authService := service.NewAuthService(userRepo, groupRepo, verifier, log)
	catalogService := service.NewCatalogService(personRepo, venueRepo, foodRepo, categoryRepo, log)
	gatheringService := service.NewGatheringService(gatheringRepo, imaging.DefaultOptions(), log)

	authHandler := handler.NewAuthHandler(authService, auditLogger, log)
	personHandler := handler.NewPersonHandler(catalogService, log)
	venueHandler := handler.NewVenueHandler(catalogService, 15, log)
	foodHandler := handler.NewFoodHandler(catalogService, log)
	categoryHandler := handler.NewCategoryHandler(catalogService, log)
	gatheringHandler := handler.NewGatheringHandler(gatheringService, auditLogger, t.TempDir(), 15, log)

	scope := middleware.RequireGroup(groupRepo, codeCache, auditLogger, log)
	scoped := func(h http.HandlerFunc) http.Handler { return scope(h) }

	mux := http.NewServeMux()
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
	mux.Handle("PUT /api/comidas/{id}", scoped(foodHandler.Update))
	mux.Handle("DELETE /api/comidas/{id}", scoped(foodHandler.Delete))

	mux.HandleFunc("GET /api/categorias", categoryHandler.List)
	mux.HandleFunc("POST /api/categorias", categoryHandler.Create)

	mux.Handle("GET /api/juntadas", scoped(gatheringHandler.List))
	mux.Handle("POST /api/juntadas", scoped(gatheringHandler.Create))
	mux.Handle("GET /api/juntadas/{id}", scoped(gatheringHandler.Get))
	mux.Handle("PUT /api/juntadas/{id}", scoped(gatheringHandler.Update))
	mux.Handle("DELETE /api/juntadas/{id}", scoped(gatheringHandler.Delete))
	mux.Handle("GET /api/estadisticas", scoped(gatheringHandler.Statistics))

	root := middleware.RateLimit(rateLimiter, log)(
		middleware.Identify(verifier, userRepo, log)(mux),
	)

	server := httptest.NewServer(root)
	t.Cleanup(server.Close)

	return &TestServer{Server: server, DB: db}
}

// URL returns the base URL of the running test server.
func (s *TestServer) URL() string {
	return s.Server.URL
}
