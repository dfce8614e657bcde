package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
)

// PostgresPersonRepository implements domain.PersonRepository using PostgreSQL.
type PostgresPersonRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresPersonRepository creates a new person repository.
func NewPostgresPersonRepository(db *sql.DB, logger *slog.Logger) *PostgresPersonRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPersonRepository{db: db, logger: logger}
}

// ListByGroup returns the group's non-deleted persons ordered by name.
func (r *PostgresPersonRepository) ListByGroup(ctx context.Context, groupID int64) ([]*domain.Person, error) {
	query := `
		SELECT id, name, nickname, birth_date, group_id, is_deleted, created_at, updated_at
		FROM persons
		WHERE group_id = $1 AND is_deleted = FALSE
		ORDER BY name ASC
	`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer rows.Close()

	var out []*domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID retrieves a non-deleted person within the group.
func (r *PostgresPersonRepository) GetByID(ctx context.Context, groupID, id int64) (*domain.Person, error) {
	query := `
		SELECT id, name, nickname, birth_date, group_id, is_deleted, created_at, updated_at
		FROM persons
		WHERE id = $1 AND group_id = $2 AND is_deleted = FALSE
	`
	p, err := scanPerson(r.db.QueryRowContext(ctx, query, id, groupID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// FindDuplicate returns a non-deleted person in the group whose name matches
// case-insensitively, or whose nickname matches when a nickname is given.
// Rows with id excludeID are skipped so updates don't collide with themselves.
func (r *PostgresPersonRepository) FindDuplicate(ctx context.Context, groupID int64, name, nickname string, excludeID int64) (*domain.Person, error) {
	query := `
		SELECT id, name, nickname, birth_date, group_id, is_deleted, created_at, updated_at
		FROM persons
		WHERE group_id = $1 AND is_deleted = FALSE AND id <> $2
		  AND (LOWER(name) = LOWER($3) OR ($4 <> '' AND LOWER(nickname) = LOWER($4)))
	`
	p, err := scanPerson(r.db.QueryRowContext(ctx, query, groupID, excludeID, name, nickname))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PostgresPersonRepository) Create(ctx context.Context, person *domain.Person) error {
	now := time.Now().UTC()
	person.CreatedAt = now
	person.UpdatedAt = now

	query := `
		INSERT INTO persons (name, nickname, birth_date, group_id, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		person.Name, person.Nickname, person.BirthDate, person.GroupID,
		person.CreatedAt, person.UpdatedAt,
	).Scan(&person.ID)
	if err != nil {
		return fmt.Errorf("failed to create person: %w", err)
	}
	return nil
}

func (r *PostgresPersonRepository) Update(ctx context.Context, person *domain.Person) error {
	person.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE persons
		SET name = $1, nickname = $2, birth_date = $3, updated_at = $4
		WHERE id = $5 AND group_id = $6 AND is_deleted = FALSE
	`
	res, err := r.db.ExecContext(ctx, query,
		person.Name, person.Nickname, person.BirthDate,
		person.UpdatedAt, person.ID, person.GroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	return requireRow(res)
}

// SoftDelete flags the person as deleted. Historical attendance rows keep
// pointing at the flagged row.
func (r *PostgresPersonRepository) SoftDelete(ctx context.Context, groupID, id int64) error {
	query := `
		UPDATE persons
		SET is_deleted = TRUE, updated_at = $1
		WHERE id = $2 AND group_id = $3 AND is_deleted = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*domain.Person, error) {
	p := &domain.Person{}
	var birth sql.NullTime
	if err := row.Scan(
		&p.ID, &p.Name, &p.Nickname, &birth, &p.GroupID, &p.IsDeleted,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan person: %w", err)
	}
	if birth.Valid {
		t := birth.Time
		p.BirthDate = &t
	}
	return p, nil
}

// requireRow maps a zero-row write to ErrNotFound.
func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
