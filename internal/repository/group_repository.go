package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
)

// PostgresGroupRepository implements domain.GroupRepository using PostgreSQL.
type PostgresGroupRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresGroupRepository creates a new group repository.
func NewPostgresGroupRepository(db *sql.DB, logger *slog.Logger) *PostgresGroupRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGroupRepository{db: db, logger: logger}
}

// Create inserts a new group. A collision on the code unique index is
// reported as domain.ErrCodeTaken so the caller can regenerate and retry.
func (r *PostgresGroupRepository) Create(ctx context.Context, group *domain.Group) error {
	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now

	query := `
		INSERT INTO groups (name, code, admin_id, min_attendances_new_gathering, max_cooks, max_shoppers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		group.Name, group.Code, group.AdminID,
		group.MinAttendancesNewGathering, group.MaxCooks, group.MaxShoppers,
		group.CreatedAt, group.UpdatedAt,
	).Scan(&group.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCodeTaken
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a unique-constraint rejection from
// either the Postgres driver or the sqlite driver the tests run on.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

func (r *PostgresGroupRepository) GetByID(ctx context.Context, id int64) (*domain.Group, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *PostgresGroupRepository) GetByCode(ctx context.Context, code string) (*domain.Group, error) {
	return r.getBy(ctx, "code = $1", code)
}

func (r *PostgresGroupRepository) GetByAdmin(ctx context.Context, adminID string) (*domain.Group, error) {
	return r.getBy(ctx, "admin_id = $1", adminID)
}

func (r *PostgresGroupRepository) getBy(ctx context.Context, where string, arg any) (*domain.Group, error) {
	g := &domain.Group{}
	query := `
		SELECT id, name, code, admin_id, min_attendances_new_gathering, max_cooks, max_shoppers, created_at, updated_at
		FROM groups
		WHERE ` + where
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&g.ID, &g.Name, &g.Code, &g.AdminID,
		&g.MinAttendancesNewGathering, &g.MaxCooks, &g.MaxShoppers,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// Update writes the editable fields. The code and admin are immutable.
func (r *PostgresGroupRepository) Update(ctx context.Context, group *domain.Group) error {
	group.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE groups
		SET name = $1, min_attendances_new_gathering = $2, max_cooks = $3, max_shoppers = $4, updated_at = $5
		WHERE id = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		group.Name, group.MinAttendancesNewGathering, group.MaxCooks, group.MaxShoppers,
		group.UpdatedAt, group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
