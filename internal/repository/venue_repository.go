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

// venueSortFields whitelists sortable columns for venue listings.
var venueSortFields = map[string]string{
	"nombre":    "v.name",
	"createdAt": "v.created_at",
	"id":        "v.id",
}

// PostgresVenueRepository implements domain.VenueRepository using PostgreSQL.
type PostgresVenueRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresVenueRepository creates a new venue repository.
func NewPostgresVenueRepository(db *sql.DB, logger *slog.Logger) *PostgresVenueRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresVenueRepository{db: db, logger: logger}
}

// ListByGroup returns a page of the group's non-deleted venues with their
// owners embedded, plus the total count before paging.
func (r *PostgresVenueRepository) ListByGroup(ctx context.Context, groupID int64, page domain.PageRequest) ([]*domain.Venue, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM venues v WHERE v.group_id = $1 AND v.is_deleted = FALSE`
	if err := r.db.QueryRowContext(ctx, countQuery, groupID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count venues: %w", err)
	}

	query := `
		SELECT v.id, v.name, v.address, v.owner_person_id, v.group_id, v.is_deleted, v.created_at, v.updated_at,
		       p.name, p.nickname
		FROM venues v
		LEFT JOIN persons p ON p.id = v.owner_person_id
		WHERE v.group_id = $1 AND v.is_deleted = FALSE
		ORDER BY ` + orderClause(venueSortFields, page, "v.name ASC")

	args := []any{groupID}
	if page.Paginated() {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, page.Limit, page.Offset())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list venues: %w", err)
	}
	defer rows.Close()

	var out []*domain.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

// GetByID retrieves a non-deleted venue within the group, owner embedded.
func (r *PostgresVenueRepository) GetByID(ctx context.Context, groupID, id int64) (*domain.Venue, error) {
	query := `
		SELECT v.id, v.name, v.address, v.owner_person_id, v.group_id, v.is_deleted, v.created_at, v.updated_at,
		       p.name, p.nickname
		FROM venues v
		LEFT JOIN persons p ON p.id = v.owner_person_id
		WHERE v.id = $1 AND v.group_id = $2 AND v.is_deleted = FALSE
	`
	v, err := scanVenue(r.db.QueryRowContext(ctx, query, id, groupID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// FindDuplicate returns a non-deleted venue in the group with a
// case-insensitively matching name, skipping excludeID.
func (r *PostgresVenueRepository) FindDuplicate(ctx context.Context, groupID int64, name string, excludeID int64) (*domain.Venue, error) {
	query := `
		SELECT v.id, v.name, v.address, v.owner_person_id, v.group_id, v.is_deleted, v.created_at, v.updated_at,
		       NULL, NULL
		FROM venues v
		WHERE v.group_id = $1 AND v.is_deleted = FALSE AND v.id <> $2
		  AND LOWER(v.name) = LOWER($3)
	`
	v, err := scanVenue(r.db.QueryRowContext(ctx, query, groupID, excludeID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *PostgresVenueRepository) Create(ctx context.Context, venue *domain.Venue) error {
	now := time.Now().UTC()
	venue.CreatedAt = now
	venue.UpdatedAt = now

	query := `
		INSERT INTO venues (name, address, owner_person_id, group_id, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		venue.Name, venue.Address, venue.OwnerPersonID, venue.GroupID,
		venue.CreatedAt, venue.UpdatedAt,
	).Scan(&venue.ID)
	if err != nil {
		return fmt.Errorf("failed to create venue: %w", err)
	}
	return nil
}

func (r *PostgresVenueRepository) Update(ctx context.Context, venue *domain.Venue) error {
	venue.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE venues
		SET name = $1, address = $2, owner_person_id = $3, updated_at = $4
		WHERE id = $5 AND group_id = $6 AND is_deleted = FALSE
	`
	res, err := r.db.ExecContext(ctx, query,
		venue.Name, venue.Address, venue.OwnerPersonID,
		venue.UpdatedAt, venue.ID, venue.GroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update venue: %w", err)
	}
	return requireRow(res)
}

// SoftDelete flags the venue as deleted. Gatherings held there keep their
// venue reference.
func (r *PostgresVenueRepository) SoftDelete(ctx context.Context, groupID, id int64) error {
	query := `
		UPDATE venues
		SET is_deleted = TRUE, updated_at = $1
		WHERE id = $2 AND group_id = $3 AND is_deleted = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete venue: %w", err)
	}
	return requireRow(res)
}

func scanVenue(row rowScanner) (*domain.Venue, error) {
	v := &domain.Venue{}
	var ownerID sql.NullInt64
	var ownerName, ownerNickname sql.NullString
	if err := row.Scan(
		&v.ID, &v.Name, &v.Address, &ownerID, &v.GroupID, &v.IsDeleted,
		&v.CreatedAt, &v.UpdatedAt,
		&ownerName, &ownerNickname,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan venue: %w", err)
	}
	if ownerID.Valid {
		id := ownerID.Int64
		v.OwnerPersonID = &id
		if ownerName.Valid {
			v.Owner = &domain.PersonRef{Name: ownerName.String, Nickname: ownerNickname.String}
		}
	}
	return v, nil
}

// orderClause builds a safe ORDER BY from the whitelist; unknown fields fall
// back to def. Direction is descending unless asked for ascending.
func orderClause(fields map[string]string, page domain.PageRequest, def string) string {
	col, ok := fields[page.SortField]
	if !ok {
		return def
	}
	dir := "DESC"
	if page.SortOrder == "ASC" || page.SortOrder == "asc" {
		dir = "ASC"
	}
	return col + " " + dir
}
