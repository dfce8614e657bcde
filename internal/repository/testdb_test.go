package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
)

// testSchema mirrors the production schema in SQLite dialect. Column types
// that carry TIME/DATE in the declaration round-trip as time.Time.
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

// openTestDB returns an isolated in-memory database. A single connection
// keeps every query on the same memory.
func openTestDB(t *testing.T) *sql.DB {
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
	return db
}

// seedGroup inserts an admin user plus a group and returns the group id.
func seedGroup(t *testing.T, db *sql.DB, adminID, code string) int64 {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	users := NewPostgresUserRepository(db, nil)
	if err := users.Upsert(ctx, &domain.User{ID: adminID, Email: adminID + "@example.com"}); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	groups := NewPostgresGroupRepository(db, nil)
	g := &domain.Group{Name: "Grupo " + code, Code: code, AdminID: adminID, MaxCooks: 2, MaxShoppers: 2, CreatedAt: now, UpdatedAt: now}
	if err := groups.Create(ctx, g); err != nil {
		t.Fatalf("failed to seed group: %v", err)
	}
	return g.ID
}

func seedPerson(t *testing.T, db *sql.DB, groupID int64, name, nickname string) int64 {
	t.Helper()
	persons := NewPostgresPersonRepository(db, nil)
	p := &domain.Person{Name: name, Nickname: nickname, GroupID: groupID}
	if err := persons.Create(context.Background(), p); err != nil {
		t.Fatalf("failed to seed person %q: %v", name, err)
	}
	return p.ID
}

func seedVenue(t *testing.T, db *sql.DB, groupID int64, name string, ownerID *int64) int64 {
	t.Helper()
	venues := NewPostgresVenueRepository(db, nil)
	v := &domain.Venue{Name: name, GroupID: groupID, OwnerPersonID: ownerID}
	if err := venues.Create(context.Background(), v); err != nil {
		t.Fatalf("failed to seed venue %q: %v", name, err)
	}
	return v.ID
}

func seedFood(t *testing.T, db *sql.DB, groupID int64, name string, foodType domain.FoodType) int64 {
	t.Helper()
	foods := NewPostgresFoodRepository(db, nil)
	f := &domain.Food{Name: name, Type: foodType, GroupID: groupID}
	if err := foods.Create(context.Background(), f); err != nil {
		t.Fatalf("failed to seed food %q: %v", name, err)
	}
	return f.ID
}
