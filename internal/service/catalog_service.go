package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
)

// CatalogService handles persons, venues, foods and the legacy categories.
type CatalogService struct {
	persons    domain.PersonRepository
	venues     domain.VenueRepository
	foods      domain.FoodRepository
	categories domain.CategoryRepository
	logger     *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(
	persons domain.PersonRepository,
	venues domain.VenueRepository,
	foods domain.FoodRepository,
	categories domain.CategoryRepository,
	logger *slog.Logger,
) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{
		persons:    persons,
		venues:     venues,
		foods:      foods,
		categories: categories,
		logger:     logger,
	}
}

// PersonInput carries the person create/update payload.
type PersonInput struct {
	Name      string     `json:"nombre"`
	Nickname  string     `json:"apodo"`
	BirthDate *time.Time `json:"fechaNacimiento"`
}

func (s *CatalogService) ListPersons(ctx context.Context, groupID int64) ([]*domain.Person, error) {
	return s.persons.ListByGroup(ctx, groupID)
}

func (s *CatalogService) GetPerson(ctx context.Context, groupID, id int64) (*domain.Person, error) {
	return s.persons.GetByID(ctx, groupID, id)
}

func (s *CatalogService) CreatePerson(ctx context.Context, groupID int64, input PersonInput) (*domain.Person, error) {
	if err := s.checkPersonInput(ctx, groupID, input, 0); err != nil {
		return nil, err
	}
	p := &domain.Person{
		Name:      strings.TrimSpace(input.Name),
		Nickname:  strings.TrimSpace(input.Nickname),
		BirthDate: input.BirthDate,
		GroupID:   groupID,
	}
	if err := s.persons.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) UpdatePerson(ctx context.Context, groupID, id int64, input PersonInput) (*domain.Person, error) {
	p, err := s.persons.GetByID(ctx, groupID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkPersonInput(ctx, groupID, input, id); err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(input.Name)
	p.Nickname = strings.TrimSpace(input.Nickname)
	p.BirthDate = input.BirthDate
	if err := s.persons.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) DeletePerson(ctx context.Context, groupID, id int64) error {
	return s.persons.SoftDelete(ctx, groupID, id)
}

func (s *CatalogService) checkPersonInput(ctx context.Context, groupID int64, input PersonInput, excludeID int64) error {
	if err := validateName(input.Name, "person name"); err != nil {
		return err
	}
	nickname := strings.TrimSpace(input.Nickname)
	if len(nickname) > 30 {
		return domain.Invalid("nickname must be at most 30 characters")
	}
	_, err := s.persons.FindDuplicate(ctx, groupID, strings.TrimSpace(input.Name), nickname, excludeID)
	if err == nil {
		return domain.Invalid("a person with that name or nickname already exists in the group")
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// VenueInput carries the venue create/update payload.
type VenueInput struct {
	Name          string `json:"nombre"`
	Address       string `json:"direccion"`
	OwnerPersonID *int64 `json:"idPersona"`
}

func (s *CatalogService) ListVenues(ctx context.Context, groupID int64, page domain.PageRequest) ([]*domain.Venue, domain.PageMeta, error) {
	venues, total, err := s.venues.ListByGroup(ctx, groupID, page)
	if err != nil {
		return nil, domain.PageMeta{}, err
	}
	if venues == nil {
		venues = []*domain.Venue{}
	}
	return venues, buildPageMeta(total, page), nil
}

func (s *CatalogService) GetVenue(ctx context.Context, groupID, id int64) (*domain.Venue, error) {
	return s.venues.GetByID(ctx, groupID, id)
}

func (s *CatalogService) CreateVenue(ctx context.Context, groupID int64, input VenueInput) (*domain.Venue, error) {
	if err := s.checkVenueInput(ctx, groupID, input, 0); err != nil {
		return nil, err
	}
	v := &domain.Venue{
		Name:          strings.TrimSpace(input.Name),
		Address:       strings.TrimSpace(input.Address),
		OwnerPersonID: input.OwnerPersonID,
		GroupID:       groupID,
	}
	if err := s.venues.Create(ctx, v); err != nil {
		return nil, err
	}
	return s.venues.GetByID(ctx, groupID, v.ID)
}

func (s *CatalogService) UpdateVenue(ctx context.Context, groupID, id int64, input VenueInput) (*domain.Venue, error) {
	v, err := s.venues.GetByID(ctx, groupID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkVenueInput(ctx, groupID, input, id); err != nil {
		return nil, err
	}
	v.Name = strings.TrimSpace(input.Name)
	v.Address = strings.TrimSpace(input.Address)
	v.OwnerPersonID = input.OwnerPersonID
	if err := s.venues.Update(ctx, v); err != nil {
		return nil, err
	}
	return s.venues.GetByID(ctx, groupID, id)
}

func (s *CatalogService) DeleteVenue(ctx context.Context, groupID, id int64) error {
	return s.venues.SoftDelete(ctx, groupID, id)
}

func (s *CatalogService) checkVenueInput(ctx context.Context, groupID int64, input VenueInput, excludeID int64) error {
	if err := validateName(input.Name, "venue name"); err != nil {
		return err
	}
	if input.OwnerPersonID != nil {
		if _, err := s.persons.GetByID(ctx, groupID, *input.OwnerPersonID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Invalid("owner person does not exist in the group")
			}
			return err
		}
	}
	_, err := s.venues.FindDuplicate(ctx, groupID, strings.TrimSpace(input.Name), excludeID)
	if err == nil {
		return domain.Invalid("a venue with that name already exists in the group")
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// FoodInput carries the food create/update payload.
type FoodInput struct {
	Name string          `json:"nombre"`
	Type domain.FoodType `json:"tipo"`
}

func (s *CatalogService) ListFoods(ctx context.Context, groupID int64) ([]*domain.Food, error) {
	return s.foods.ListByGroup(ctx, groupID)
}

func (s *CatalogService) GetFood(ctx context.Context, groupID, id int64) (*domain.Food, error) {
	return s.foods.GetByID(ctx, groupID, id)
}

func (s *CatalogService) CreateFood(ctx context.Context, groupID int64, input FoodInput) (*domain.Food, error) {
	if err := s.checkFoodInput(ctx, groupID, input, 0); err != nil {
		return nil, err
	}
	f := &domain.Food{
		Name:    strings.TrimSpace(input.Name),
		Type:    input.Type,
		GroupID: groupID,
	}
	if err := s.foods.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *CatalogService) UpdateFood(ctx context.Context, groupID, id int64, input FoodInput) (*domain.Food, error) {
	f, err := s.foods.GetByID(ctx, groupID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkFoodInput(ctx, groupID, input, id); err != nil {
		return nil, err
	}
	f.Name = strings.TrimSpace(input.Name)
	f.Type = input.Type
	if err := s.foods.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *CatalogService) DeleteFood(ctx context.Context, groupID, id int64) error {
	return s.foods.SoftDelete(ctx, groupID, id)
}

func (s *CatalogService) checkFoodInput(ctx context.Context, groupID int64, input FoodInput, excludeID int64) error {
	if err := validateName(input.Name, "food name"); err != nil {
		return err
	}
	if !domain.ValidFoodType(input.Type) {
		return domain.Invalid("food type must be Pedida or Casera")
	}
	_, err := s.foods.FindDuplicate(ctx, groupID, strings.TrimSpace(input.Name), excludeID)
	if err == nil {
		return domain.Invalid("a food with that name already exists in the group")
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories.List(ctx)
}

func (s *CatalogService) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	if err := validateName(name, "category name"); err != nil {
		return nil, err
	}
	c := &domain.Category{Name: strings.TrimSpace(name)}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// buildPageMeta derives page metadata; limit -1 means the whole set came back
// as one page.
func buildPageMeta(total int, page domain.PageRequest) domain.PageMeta {
	if !page.Paginated() {
		return domain.PageMeta{Total: total, Page: 1, Limit: total, TotalPages: 1}
	}
	pages := total / page.Limit
	if total%page.Limit != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	p := page.Page
	if p < 1 {
		p = 1
	}
	return domain.PageMeta{Total: total, Page: p, Limit: page.Limit, TotalPages: pages}
}
