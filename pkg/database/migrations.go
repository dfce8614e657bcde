package database

import (
	"context"
	"database/sql"
)

// schema is applied on startup. Statements are idempotent; there is no
// versioned migration history yet.
//
// Timestamps are always assigned by the application, never by column
// defaults, so reads scan identically across drivers.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL DEFAULT '',
    avatar_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    code TEXT NOT NULL UNIQUE,
    admin_id UUID NOT NULL REFERENCES users(id),
    min_attendances_new_gathering INTEGER NOT NULL DEFAULT 0,
    max_cooks INTEGER NOT NULL DEFAULT 2,
    max_shoppers INTEGER NOT NULL DEFAULT 2,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS persons (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    nickname TEXT NOT NULL DEFAULT '',
    birth_date DATE,
    group_id BIGINT NOT NULL REFERENCES groups(id),
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS venues (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    owner_person_id BIGINT REFERENCES persons(id),
    group_id BIGINT NOT NULL REFERENCES groups(id),
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS foods (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    food_type TEXT NOT NULL,
    group_id BIGINT NOT NULL REFERENCES groups(id),
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS gatherings (
    id BIGSERIAL PRIMARY KEY,
    held_on TIMESTAMPTZ NOT NULL,
    photo TEXT NOT NULL DEFAULT '',
    venue_id BIGINT NOT NULL REFERENCES venues(id),
    group_id BIGINT NOT NULL REFERENCES groups(id),
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS gathering_foods (
    id BIGSERIAL PRIMARY KEY,
    gathering_id BIGINT NOT NULL REFERENCES gatherings(id),
    food_id BIGINT NOT NULL REFERENCES foods(id),
    meal_category TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS attendances (
    id BIGSERIAL PRIMARY KEY,
    gathering_id BIGINT NOT NULL REFERENCES gatherings(id),
    person_id BIGINT NOT NULL REFERENCES persons(id),
    washed BOOLEAN NOT NULL DEFAULT FALSE,
    cooked BOOLEAN NOT NULL DEFAULT FALSE,
    shopped BOOLEAN NOT NULL DEFAULT FALSE,
    dessert BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_groups_code ON groups(code);
CREATE INDEX IF NOT EXISTS idx_groups_admin_id ON groups(admin_id);
CREATE INDEX IF NOT EXISTS idx_persons_group_id ON persons(group_id);
CREATE INDEX IF NOT EXISTS idx_venues_group_id ON venues(group_id);
CREATE INDEX IF NOT EXISTS idx_foods_group_id ON foods(group_id);
CREATE INDEX IF NOT EXISTS idx_gatherings_group_id ON gatherings(group_id);
CREATE INDEX IF NOT EXISTS idx_gathering_foods_gathering_id ON gathering_foods(gathering_id);
CREATE INDEX IF NOT EXISTS idx_attendances_gathering_id ON attendances(gathering_id);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
