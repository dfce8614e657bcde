package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
)

// PostgresCategoryRepository implements domain.CategoryRepository using
// PostgreSQL. Categories are global, not tenant-scoped.
type PostgresCategoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresCategoryRepository creates a new category repository.
func NewPostgresCategoryRepository(db *sql.DB, logger *slog.Logger) *PostgresCategoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCategoryRepository{db: db, logger: logger}
}

func (r *PostgresCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	query := `SELECT id, name FROM categories ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []*domain.Category
	for rows.Next() {
		c := &domain.Category{}
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	query := `INSERT INTO categories (name) VALUES ($1) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, category.Name).Scan(&category.ID); err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}
