package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
)

// gatheringSortFields whitelists sortable columns for gathering listings.
var gatheringSortFields = map[string]string{
	"fecha":     "g.held_on",
	"createdAt": "g.created_at",
	"id":        "g.id",
}

// PostgresGatheringRepository implements domain.GatheringRepository using
// PostgreSQL.
type PostgresGatheringRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresGatheringRepository creates a new gathering repository.
func NewPostgresGatheringRepository(db *sql.DB, logger *slog.Logger) *PostgresGatheringRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGatheringRepository{db: db, logger: logger}
}

// Create inserts the gathering and both child collections in one transaction.
// Food, person and venue ids are checked against the group inside the
// transaction; any unknown id rolls the whole write back.
func (r *PostgresGatheringRepository) Create(ctx context.Context, g *domain.Gathering, foods []domain.FoodLine, attendances []domain.Attendance) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	if err := r.checkVenue(ctx, tx, g.GroupID, g.VenueID); err != nil {
		return err
	}

	query := `
		INSERT INTO gatherings (held_on, photo, venue_id, group_id, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		g.Date, g.Photo, g.VenueID, g.GroupID, g.CreatedAt, g.UpdatedAt,
	).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("failed to create gathering: %w", err)
	}

	if err := r.insertChildren(ctx, tx, g, foods, attendances); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit gathering: %w", err)
	}
	return nil
}

// Update rewrites the parent row and replaces both child collections. The
// parent UPDATE runs first and takes the row lock that serializes concurrent
// replacements of the same gathering. An empty Photo keeps the stored one.
func (r *PostgresGatheringRepository) Update(ctx context.Context, g *domain.Gathering, foods []domain.FoodLine, attendances []domain.Attendance) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	g.UpdatedAt = time.Now().UTC()

	var photoArg any
	if g.Photo != "" {
		photoArg = g.Photo
	}

	query := `
		UPDATE gatherings
		SET held_on = $1, photo = COALESCE($2, photo), venue_id = $3, updated_at = $4
		WHERE id = $5 AND group_id = $6 AND is_deleted = FALSE
	`
	res, err := tx.ExecContext(ctx, query,
		g.Date, photoArg, g.VenueID, g.UpdatedAt, g.ID, g.GroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update gathering: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if err := r.checkVenue(ctx, tx, g.GroupID, g.VenueID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM gathering_foods WHERE gathering_id = $1`, g.ID); err != nil {
		return fmt.Errorf("failed to clear food lines: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attendances WHERE gathering_id = $1`, g.ID); err != nil {
		return fmt.Errorf("failed to clear attendances: %w", err)
	}

	if err := r.insertChildren(ctx, tx, g, foods, attendances); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit gathering: %w", err)
	}
	return nil
}

// SoftDelete flags the gathering as deleted; child rows stay in place.
func (r *PostgresGatheringRepository) SoftDelete(ctx context.Context, groupID, id int64) error {
	query := `
		UPDATE gatherings
		SET is_deleted = TRUE, updated_at = $1
		WHERE id = $2 AND group_id = $3 AND is_deleted = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete gathering: %w", err)
	}
	return requireRow(res)
}

// GetView assembles the denormalized view with a single joined query. The
// join fans out across food lines and attendances; children are deduplicated
// by id while scanning.
func (r *PostgresGatheringRepository) GetView(ctx context.Context, groupID, id int64) (*domain.GatheringView, error) {
	query := `
		SELECT g.id, g.held_on, g.photo, g.venue_id, g.group_id, g.is_deleted, g.created_at, g.updated_at,
		       v.name, v.address, v.owner_person_id, v.created_at, v.updated_at, op.name, op.nickname,
		       gf.id, gf.food_id, gf.meal_category, f.name, f.food_type,
		       a.id, a.person_id, a.washed, a.cooked, a.shopped, a.dessert, p.name, p.nickname
		FROM gatherings g
		LEFT JOIN venues v ON v.id = g.venue_id
		LEFT JOIN persons op ON op.id = v.owner_person_id
		LEFT JOIN gathering_foods gf ON gf.gathering_id = g.id
		LEFT JOIN foods f ON f.id = gf.food_id
		LEFT JOIN attendances a ON a.gathering_id = g.id
		LEFT JOIN persons p ON p.id = a.person_id
		WHERE g.id = $1 AND g.group_id = $2 AND g.is_deleted = FALSE
	`
	rows, err := r.db.QueryContext(ctx, query, id, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get gathering: %w", err)
	}
	defer rows.Close()

	var view *domain.GatheringView
	seenFoods := map[int64]bool{}
	seenAttendances := map[int64]bool{}

	for rows.Next() {
		var (
			g domain.Gathering

			venueName, venueAddress       sql.NullString
			venueOwnerID                  sql.NullInt64
			venueCreatedAt, venueUpdated  sql.NullTime
			ownerName, ownerNickname      sql.NullString
			lineID, lineFoodID            sql.NullInt64
			lineCategory                  sql.NullString
			foodName, foodType            sql.NullString
			attID, attPersonID            sql.NullInt64
			washed, cooked, shop, dessert sql.NullBool
			personName, personNickname    sql.NullString
		)

		if err := rows.Scan(
			&g.ID, &g.Date, &g.Photo, &g.VenueID, &g.GroupID, &g.IsDeleted, &g.CreatedAt, &g.UpdatedAt,
			&venueName, &venueAddress, &venueOwnerID, &venueCreatedAt, &venueUpdated, &ownerName, &ownerNickname,
			&lineID, &lineFoodID, &lineCategory, &foodName, &foodType,
			&attID, &attPersonID, &washed, &cooked, &shop, &dessert, &personName, &personNickname,
		); err != nil {
			return nil, fmt.Errorf("failed to scan gathering row: %w", err)
		}

		if view == nil {
			view = &domain.GatheringView{
				Gathering:   g,
				FoodLines:   []domain.FoodLineView{},
				Attendances: []domain.AttendanceView{},
			}
			if venueName.Valid {
				venue := &domain.Venue{
					ID:      g.VenueID,
					Name:    venueName.String,
					Address: venueAddress.String,
					GroupID: g.GroupID,
				}
				if venueCreatedAt.Valid {
					venue.CreatedAt = venueCreatedAt.Time
				}
				if venueUpdated.Valid {
					venue.UpdatedAt = venueUpdated.Time
				}
				if venueOwnerID.Valid {
					oid := venueOwnerID.Int64
					venue.OwnerPersonID = &oid
					if ownerName.Valid {
						venue.Owner = &domain.PersonRef{Name: ownerName.String, Nickname: ownerNickname.String}
					}
				}
				view.Venue = venue
			}
		}

		if lineID.Valid && !seenFoods[lineID.Int64] {
			seenFoods[lineID.Int64] = true
			view.FoodLines = append(view.FoodLines, domain.FoodLineView{
				FoodLine: domain.FoodLine{
					ID:           lineID.Int64,
					GatheringID:  g.ID,
					FoodID:       lineFoodID.Int64,
					MealCategory: domain.MealCategory(lineCategory.String),
				},
				Food: domain.FoodRef{Name: foodName.String, Type: domain.FoodType(foodType.String)},
			})
		}

		if attID.Valid && !seenAttendances[attID.Int64] {
			seenAttendances[attID.Int64] = true
			view.Attendances = append(view.Attendances, domain.AttendanceView{
				Attendance: domain.Attendance{
					ID:          attID.Int64,
					GatheringID: g.ID,
					PersonID:    attPersonID.Int64,
					WashedUp:    washed.Bool,
					Cooked:      cooked.Bool,
					Shopped:     shop.Bool,
					Dessert:     dessert.Bool,
				},
				Person: domain.PersonRef{Name: personName.String, Nickname: personNickname.String},
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read gathering rows: %w", err)
	}
	if view == nil {
		return nil, domain.ErrNotFound
	}
	view.AttendeeCount = len(view.Attendances)
	return view, nil
}

// ListViews assembles views with three independent queries merged in memory,
// trading round trips for freedom from join fan-out on large pages.
func (r *PostgresGatheringRepository) ListViews(ctx context.Context, groupID int64, page domain.PageRequest) ([]*domain.GatheringView, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM gatherings g WHERE g.group_id = $1 AND g.is_deleted = FALSE`
	if err := r.db.QueryRowContext(ctx, countQuery, groupID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count gatherings: %w", err)
	}

	order := orderClause(gatheringSortFields, page, "g.held_on DESC")
	limit, offset := -1, 0
	if page.Paginated() {
		limit, offset = page.Limit, page.Offset()
	}

	views, err := r.listAssembled(ctx, groupID, order, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// StatsViews returns every non-deleted gathering of the group in ascending
// date order with full child collections.
func (r *PostgresGatheringRepository) StatsViews(ctx context.Context, groupID int64) ([]*domain.GatheringView, error) {
	return r.listAssembled(ctx, groupID, "g.held_on ASC", -1, 0)
}

// listAssembled runs the split-query read: base rows with venue and owner,
// then food lines and attendances for the collected id set.
func (r *PostgresGatheringRepository) listAssembled(ctx context.Context, groupID int64, order string, limit, offset int) ([]*domain.GatheringView, error) {
	query := `
		SELECT g.id, g.held_on, g.photo, g.venue_id, g.group_id, g.is_deleted, g.created_at, g.updated_at,
		       v.name, v.address, v.owner_person_id, v.created_at, v.updated_at, op.name, op.nickname
		FROM gatherings g
		LEFT JOIN venues v ON v.id = g.venue_id
		LEFT JOIN persons op ON op.id = v.owner_person_id
		WHERE g.group_id = $1 AND g.is_deleted = FALSE
		ORDER BY ` + order

	args := []any{groupID}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list gatherings: %w", err)
	}
	defer rows.Close()

	var views []*domain.GatheringView
	byID := map[int64]*domain.GatheringView{}
	var ids []int64

	for rows.Next() {
		var (
			g domain.Gathering

			venueName, venueAddress      sql.NullString
			venueOwnerID                 sql.NullInt64
			venueCreatedAt, venueUpdated sql.NullTime
			ownerName, ownerNickname     sql.NullString
		)
		if err := rows.Scan(
			&g.ID, &g.Date, &g.Photo, &g.VenueID, &g.GroupID, &g.IsDeleted, &g.CreatedAt, &g.UpdatedAt,
			&venueName, &venueAddress, &venueOwnerID, &venueCreatedAt, &venueUpdated, &ownerName, &ownerNickname,
		); err != nil {
			return nil, fmt.Errorf("failed to scan gathering: %w", err)
		}

		view := &domain.GatheringView{
			Gathering:   g,
			FoodLines:   []domain.FoodLineView{},
			Attendances: []domain.AttendanceView{},
		}
		if venueName.Valid {
			venue := &domain.Venue{
				ID:      g.VenueID,
				Name:    venueName.String,
				Address: venueAddress.String,
				GroupID: g.GroupID,
			}
			if venueCreatedAt.Valid {
				venue.CreatedAt = venueCreatedAt.Time
			}
			if venueUpdated.Valid {
				venue.UpdatedAt = venueUpdated.Time
			}
			if venueOwnerID.Valid {
				oid := venueOwnerID.Int64
				venue.OwnerPersonID = &oid
				if ownerName.Valid {
					venue.Owner = &domain.PersonRef{Name: ownerName.String, Nickname: ownerNickname.String}
				}
			}
			view.Venue = venue
		}

		views = append(views, view)
		byID[g.ID] = view
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read gatherings: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.GatheringView{}, nil
	}

	if err := r.attachFoodLines(ctx, byID, ids); err != nil {
		return nil, err
	}
	if err := r.attachAttendances(ctx, byID, ids); err != nil {
		return nil, err
	}
	for _, v := range views {
		v.AttendeeCount = len(v.Attendances)
	}
	return views, nil
}

func (r *PostgresGatheringRepository) attachFoodLines(ctx context.Context, byID map[int64]*domain.GatheringView, ids []int64) error {
	placeholders, args := inArgs(ids, 1)
	query := `
		SELECT gf.id, gf.gathering_id, gf.food_id, gf.meal_category, f.name, f.food_type
		FROM gathering_foods gf
		JOIN foods f ON f.id = gf.food_id
		WHERE gf.gathering_id IN (` + placeholders + `)
		ORDER BY gf.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to list food lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.FoodLineView
		var category, foodType string
		if err := rows.Scan(&line.ID, &line.GatheringID, &line.FoodID, &category, &line.Food.Name, &foodType); err != nil {
			return fmt.Errorf("failed to scan food line: %w", err)
		}
		line.MealCategory = domain.MealCategory(category)
		line.Food.Type = domain.FoodType(foodType)
		if view, ok := byID[line.GatheringID]; ok {
			view.FoodLines = append(view.FoodLines, line)
		}
	}
	return rows.Err()
}

func (r *PostgresGatheringRepository) attachAttendances(ctx context.Context, byID map[int64]*domain.GatheringView, ids []int64) error {
	placeholders, args := inArgs(ids, 1)
	query := `
		SELECT a.id, a.gathering_id, a.person_id, a.washed, a.cooked, a.shopped, a.dessert, p.name, p.nickname
		FROM attendances a
		JOIN persons p ON p.id = a.person_id
		WHERE a.gathering_id IN (` + placeholders + `)
		ORDER BY a.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to list attendances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var att domain.AttendanceView
		if err := rows.Scan(
			&att.ID, &att.GatheringID, &att.PersonID,
			&att.WashedUp, &att.Cooked, &att.Shopped, &att.Dessert,
			&att.Person.Name, &att.Person.Nickname,
		); err != nil {
			return fmt.Errorf("failed to scan attendance: %w", err)
		}
		if view, ok := byID[att.GatheringID]; ok {
			view.Attendances = append(view.Attendances, att)
		}
	}
	return rows.Err()
}

// ListWithPhotos returns non-deleted gatherings whose stored photo is at
// least minBytes long.
func (r *PostgresGatheringRepository) ListWithPhotos(ctx context.Context, minBytes int) ([]*domain.Gathering, error) {
	query := `
		SELECT id, held_on, photo, venue_id, group_id, is_deleted, created_at, updated_at
		FROM gatherings
		WHERE is_deleted = FALSE AND LENGTH(photo) >= $1
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, minBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to list gatherings with photos: %w", err)
	}
	defer rows.Close()

	var out []*domain.Gathering
	for rows.Next() {
		g := &domain.Gathering{}
		if err := rows.Scan(
			&g.ID, &g.Date, &g.Photo, &g.VenueID, &g.GroupID, &g.IsDeleted,
			&g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan gathering: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UpdatePhoto swaps the stored photo without touching anything else.
func (r *PostgresGatheringRepository) UpdatePhoto(ctx context.Context, id int64, photo string) error {
	query := `UPDATE gatherings SET photo = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, photo, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update photo: %w", err)
	}
	return requireRow(res)
}

// insertChildren validates and inserts both child collections inside tx.
func (r *PostgresGatheringRepository) insertChildren(ctx context.Context, tx *sql.Tx, g *domain.Gathering, foods []domain.FoodLine, attendances []domain.Attendance) error {
	if err := r.checkFoods(ctx, tx, g.GroupID, foods); err != nil {
		return err
	}
	if err := r.checkPersons(ctx, tx, g.GroupID, attendances); err != nil {
		return err
	}

	for i := range foods {
		foods[i].GatheringID = g.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO gathering_foods (gathering_id, food_id, meal_category) VALUES ($1, $2, $3) RETURNING id`,
			g.ID, foods[i].FoodID, string(foods[i].MealCategory),
		).Scan(&foods[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert food line: %w", err)
		}
	}

	for i := range attendances {
		attendances[i].GatheringID = g.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO attendances (gathering_id, person_id, washed, cooked, shopped, dessert) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			g.ID, attendances[i].PersonID,
			attendances[i].WashedUp, attendances[i].Cooked, attendances[i].Shopped, attendances[i].Dessert,
		).Scan(&attendances[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert attendance: %w", err)
		}
	}
	return nil
}

func (r *PostgresGatheringRepository) checkVenue(ctx context.Context, tx *sql.Tx, groupID, venueID int64) error {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM venues WHERE id = $1 AND group_id = $2 AND is_deleted = FALSE`,
		venueID, groupID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Invalid(fmt.Sprintf("unknown venue id %d", venueID))
	}
	if err != nil {
		return fmt.Errorf("failed to check venue: %w", err)
	}
	return nil
}

func (r *PostgresGatheringRepository) checkFoods(ctx context.Context, tx *sql.Tx, groupID int64, foods []domain.FoodLine) error {
	ids := map[int64]bool{}
	for _, f := range foods {
		ids[f.FoodID] = true
	}
	return r.checkIDs(ctx, tx, "foods", groupID, ids, "food")
}

func (r *PostgresGatheringRepository) checkPersons(ctx context.Context, tx *sql.Tx, groupID int64, attendances []domain.Attendance) error {
	ids := map[int64]bool{}
	for _, a := range attendances {
		ids[a.PersonID] = true
	}
	return r.checkIDs(ctx, tx, "persons", groupID, ids, "person")
}

// checkIDs verifies every id exists in the group and is not soft-deleted.
func (r *PostgresGatheringRepository) checkIDs(ctx context.Context, tx *sql.Tx, table string, groupID int64, ids map[int64]bool, kind string) error {
	if len(ids) == 0 {
		return nil
	}
	list := make([]int64, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	placeholders, args := inArgs(list, 2)
	args = append([]any{groupID}, args...)

	query := `SELECT id FROM ` + table + ` WHERE group_id = $1 AND is_deleted = FALSE AND id IN (` + placeholders + `)`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to check %s ids: %w", kind, err)
	}
	defer rows.Close()

	found := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan %s id: %w", kind, err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range list {
		if !found[id] {
			return domain.Invalid(fmt.Sprintf("unknown %s id %d", kind, id))
		}
	}
	return nil
}

// inArgs builds a $n placeholder list starting at `from` plus the matching
// args slice.
func inArgs(ids []int64, from int) (string, []any) {
	parts := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("$%d", from+i)
		args[i] = id
	}
	return strings.Join(parts, ", "), args
}
