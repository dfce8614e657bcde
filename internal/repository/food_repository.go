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

// PostgresFoodRepository implements domain.FoodRepository using PostgreSQL.
type PostgresFoodRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresFoodRepository creates a new food repository.
func NewPostgresFoodRepository(db *sql.DB, logger *slog.Logger) *PostgresFoodRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresFoodRepository{db: db, logger: logger}
}

// ListByGroup returns the group's non-deleted foods ordered by name.
func (r *PostgresFoodRepository) ListByGroup(ctx context.Context, groupID int64) ([]*domain.Food, error) {
	query := `
		SELECT id, name, food_type, group_id, is_deleted, created_at, updated_at
		FROM foods
		WHERE group_id = $1 AND is_deleted = FALSE
		ORDER BY name ASC
	`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list foods: %w", err)
	}
	defer rows.Close()

	var out []*domain.Food
	for rows.Next() {
		f, err := scanFood(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *PostgresFoodRepository) GetByID(ctx context.Context, groupID, id int64) (*domain.Food, error) {
	query := `
		SELECT id, name, food_type, group_id, is_deleted, created_at, updated_at
		FROM foods
		WHERE id = $1 AND group_id = $2 AND is_deleted = FALSE
	`
	f, err := scanFood(r.db.QueryRowContext(ctx, query, id, groupID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// FindDuplicate returns a non-deleted food in the group with a
// case-insensitively matching name, skipping excludeID.
func (r *PostgresFoodRepository) FindDuplicate(ctx context.Context, groupID int64, name string, excludeID int64) (*domain.Food, error) {
	query := `
		SELECT id, name, food_type, group_id, is_deleted, created_at, updated_at
		FROM foods
		WHERE group_id = $1 AND is_deleted = FALSE AND id <> $2
		  AND LOWER(name) = LOWER($3)
	`
	f, err := scanFood(r.db.QueryRowContext(ctx, query, groupID, excludeID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (r *PostgresFoodRepository) Create(ctx context.Context, food *domain.Food) error {
	now := time.Now().UTC()
	food.CreatedAt = now
	food.UpdatedAt = now

	query := `
		INSERT INTO foods (name, food_type, group_id, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		food.Name, string(food.Type), food.GroupID, food.CreatedAt, food.UpdatedAt,
	).Scan(&food.ID)
	if err != nil {
		return fmt.Errorf("failed to create food: %w", err)
	}
	return nil
}

func (r *PostgresFoodRepository) Update(ctx context.Context, food *domain.Food) error {
	food.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE foods
		SET name = $1, food_type = $2, updated_at = $3
		WHERE id = $4 AND group_id = $5 AND is_deleted = FALSE
	`
	res, err := r.db.ExecContext(ctx, query,
		food.Name, string(food.Type), food.UpdatedAt, food.ID, food.GroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update food: %w", err)
	}
	return requireRow(res)
}

// SoftDelete flags the food as deleted. Food lines on past gatherings keep
// their reference.
func (r *PostgresFoodRepository) SoftDelete(ctx context.Context, groupID, id int64) error {
	query := `
		UPDATE foods
		SET is_deleted = TRUE, updated_at = $1
		WHERE id = $2 AND group_id = $3 AND is_deleted = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete food: %w", err)
	}
	return requireRow(res)
}

func scanFood(row rowScanner) (*domain.Food, error) {
	f := &domain.Food{}
	var foodType string
	if err := row.Scan(
		&f.ID, &f.Name, &foodType, &f.GroupID, &f.IsDeleted,
		&f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan food: %w", err)
	}
	f.Type = domain.FoodType(foodType)
	return f, nil
}
