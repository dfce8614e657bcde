package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
	"github.com/matescarabino/gatheringTracker-server/internal/featureflags"
	"github.com/matescarabino/gatheringTracker-server/internal/imaging"
	"github.com/matescarabino/gatheringTracker-server/internal/observability/metrics"
)

// GatheringService handles the gathering aggregate: validated writes with
// full child-collection replacement, denormalized reads and statistics.
type GatheringService struct {
	gatherings domain.GatheringRepository
	photoOpts  imaging.Options
	logger     *slog.Logger
}

// NewGatheringService creates a new gathering service.
func NewGatheringService(gatherings domain.GatheringRepository, photoOpts imaging.Options, logger *slog.Logger) *GatheringService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GatheringService{gatherings: gatherings, photoOpts: photoOpts, logger: logger}
}

// FoodLineInput is one food entry of a gathering payload.
type FoodLineInput struct {
	FoodID       int64               `json:"idComida"`
	MealCategory domain.MealCategory `json:"categoria"`
}

// AttendanceInput is one attendance entry of a gathering payload.
type AttendanceInput struct {
	PersonID int64 `json:"idPersona"`
	WashedUp bool  `json:"lavo"`
	Cooked   bool  `json:"cocino"`
	Shopped  bool  `json:"compras"`
	Dessert  bool  `json:"postre"`
}

// GatheringInput carries the full gathering payload. Both child collections
// replace whatever is stored.
type GatheringInput struct {
	Date        time.Time
	VenueID     int64
	Photo       string
	FoodLines   []FoodLineInput
	Attendances []AttendanceInput
}

// Create validates the payload and writes the aggregate atomically.
func (s *GatheringService) Create(ctx context.Context, groupID int64, input GatheringInput) (*domain.GatheringView, error) {
	foods, attendances, err := s.checkInput(input)
	if err != nil {
		metrics.ObserveGatheringMutation("create", "invalid")
		return nil, err
	}

	g := &domain.Gathering{
		Date:    input.Date,
		Photo:   s.normalizePhoto(input.Photo),
		VenueID: input.VenueID,
		GroupID: groupID,
	}
	if err := s.gatherings.Create(ctx, g, foods, attendances); err != nil {
		metrics.ObserveGatheringMutation("create", "error")
		return nil, err
	}
	metrics.ObserveGatheringMutation("create", "success")
	s.logger.Info("gathering created",
		slog.Int64("gathering_id", g.ID),
		slog.Int64("group_id", groupID),
		slog.Int("food_lines", len(foods)),
		slog.Int("attendances", len(attendances)),
	)
	return s.gatherings.GetView(ctx, groupID, g.ID)
}

// Update validates the payload and replaces the aggregate atomically. An
// empty photo keeps the stored one.
func (s *GatheringService) Update(ctx context.Context, groupID, id int64, input GatheringInput) (*domain.GatheringView, error) {
	foods, attendances, err := s.checkInput(input)
	if err != nil {
		metrics.ObserveGatheringMutation("update", "invalid")
		return nil, err
	}

	g := &domain.Gathering{
		ID:      id,
		Date:    input.Date,
		Photo:   s.normalizePhoto(input.Photo),
		VenueID: input.VenueID,
		GroupID: groupID,
	}
	if err := s.gatherings.Update(ctx, g, foods, attendances); err != nil {
		metrics.ObserveGatheringMutation("update", "error")
		return nil, err
	}
	metrics.ObserveGatheringMutation("update", "success")
	return s.gatherings.GetView(ctx, groupID, id)
}

func (s *GatheringService) Delete(ctx context.Context, groupID, id int64) error {
	if err := s.gatherings.SoftDelete(ctx, groupID, id); err != nil {
		metrics.ObserveGatheringMutation("delete", "error")
		return err
	}
	metrics.ObserveGatheringMutation("delete", "success")
	return nil
}

func (s *GatheringService) Get(ctx context.Context, groupID, id int64) (*domain.GatheringView, error) {
	return s.gatherings.GetView(ctx, groupID, id)
}

func (s *GatheringService) List(ctx context.Context, groupID int64, page domain.PageRequest) ([]*domain.GatheringView, domain.PageMeta, error) {
	views, total, err := s.gatherings.ListViews(ctx, groupID, page)
	if err != nil {
		return nil, domain.PageMeta{}, err
	}
	if views == nil {
		views = []*domain.GatheringView{}
	}
	return views, buildPageMeta(total, page), nil
}

// Statistics returns every gathering of the group in ascending date order
// with full child collections. A group without gatherings yields an empty
// slice.
func (s *GatheringService) Statistics(ctx context.Context, groupID int64) ([]*domain.GatheringView, error) {
	views, err := s.gatherings.StatsViews(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []*domain.GatheringView{}
	}
	return views, nil
}

func (s *GatheringService) checkInput(input GatheringInput) ([]domain.FoodLine, []domain.Attendance, error) {
	if input.Date.IsZero() {
		return nil, nil, domain.Invalid("gathering date is required")
	}
	if input.VenueID <= 0 {
		return nil, nil, domain.Invalid("venue id is required")
	}

	foods := make([]domain.FoodLine, 0, len(input.FoodLines))
	for _, line := range input.FoodLines {
		if line.FoodID <= 0 {
			return nil, nil, domain.Invalid("food line is missing its food id")
		}
		if !domain.ValidMealCategory(line.MealCategory) {
			return nil, nil, domain.Invalid("meal category must be Almuerzo, Merienda, Cena or Postre")
		}
		foods = append(foods, domain.FoodLine{FoodID: line.FoodID, MealCategory: line.MealCategory})
	}

	attendances := make([]domain.Attendance, 0, len(input.Attendances))
	for _, a := range input.Attendances {
		if a.PersonID <= 0 {
			return nil, nil, domain.Invalid("attendance is missing its person id")
		}
		attendances = append(attendances, domain.Attendance{
			PersonID: a.PersonID,
			WashedUp: a.WashedUp,
			Cooked:   a.Cooked,
			Shopped:  a.Shopped,
			Dessert:  a.Dessert,
		})
	}
	return foods, attendances, nil
}

// normalizePhoto re-encodes inline photos down to the configured width. A
// photo that cannot be decoded is stored as received; uploads must not fail
// over a bad image.
func (s *GatheringService) normalizePhoto(photo string) string {
	if photo == "" || !imaging.IsInline(photo) {
		return photo
	}
	// FLAG_SKIP_PHOTO_NORMALIZATION stores photos exactly as received.
	if featureflags.Enabled("skip_photo_normalization") {
		return photo
	}
	start := time.Now()
	normalized, err := imaging.NormalizeBase64(photo, s.photoOpts)
	if err != nil {
		metrics.ObservePhotoNormalization("error", time.Since(start))
		s.logger.Warn("photo normalization failed, storing original",
			slog.String("error", err.Error()),
		)
		return photo
	}
	metrics.ObservePhotoNormalization("success", time.Since(start))
	if len(normalized) < len(photo) {
		return normalized
	}
	return photo
}
