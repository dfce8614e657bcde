package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
)

type memUserRepo struct {
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*domain.User{}}
}

func (m *memUserRepo) Upsert(ctx context.Context, user *domain.User) error {
	if existing, ok := m.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type memGroupRepo struct {
	groups map[int64]*domain.Group
	nextID int64
	// failCreates rejects the first N creates as code collisions.
	failCreates int
	// createErr, when set, rejects every create with this error.
	createErr error
	creates   int
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{groups: map[int64]*domain.Group{}}
}

func (m *memGroupRepo) Create(ctx context.Context, group *domain.Group) error {
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	if m.failCreates > 0 {
		m.failCreates--
		return domain.ErrCodeTaken
	}
	m.nextID++
	group.ID = m.nextID
	cp := *group
	m.groups[group.ID] = &cp
	return nil
}

func (m *memGroupRepo) GetByID(ctx context.Context, id int64) (*domain.Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memGroupRepo) GetByCode(ctx context.Context, code string) (*domain.Group, error) {
	for _, g := range m.groups {
		if g.Code == code {
			cp := *g
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memGroupRepo) GetByAdmin(ctx context.Context, adminID string) (*domain.Group, error) {
	for _, g := range m.groups {
		if g.AdminID == adminID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memGroupRepo) Update(ctx context.Context, group *domain.Group) error {
	if _, ok := m.groups[group.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *group
	m.groups[group.ID] = &cp
	return nil
}

type memPersonRepo struct {
	persons map[int64]*domain.Person
	nextID  int64
}

func newMemPersonRepo() *memPersonRepo {
	return &memPersonRepo{persons: map[int64]*domain.Person{}}
}

func (m *memPersonRepo) ListByGroup(ctx context.Context, groupID int64) ([]*domain.Person, error) {
	var out []*domain.Person
	for _, p := range m.persons {
		if p.GroupID == groupID && !p.IsDeleted {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memPersonRepo) GetByID(ctx context.Context, groupID, id int64) (*domain.Person, error) {
	p, ok := m.persons[id]
	if !ok || p.GroupID != groupID || p.IsDeleted {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPersonRepo) FindDuplicate(ctx context.Context, groupID int64, name, nickname string, excludeID int64) (*domain.Person, error) {
	for _, p := range m.persons {
		if p.GroupID != groupID || p.IsDeleted || p.ID == excludeID {
			continue
		}
		if strings.EqualFold(p.Name, name) {
			cp := *p
			return &cp, nil
		}
		if nickname != "" && strings.EqualFold(p.Nickname, nickname) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPersonRepo) Create(ctx context.Context, person *domain.Person) error {
	m.nextID++
	person.ID = m.nextID
	cp := *person
	m.persons[person.ID] = &cp
	return nil
}

func (m *memPersonRepo) Update(ctx context.Context, person *domain.Person) error {
	existing, ok := m.persons[person.ID]
	if !ok || existing.GroupID != person.GroupID || existing.IsDeleted {
		return domain.ErrNotFound
	}
	cp := *person
	m.persons[person.ID] = &cp
	return nil
}

func (m *memPersonRepo) SoftDelete(ctx context.Context, groupID, id int64) error {
	p, ok := m.persons[id]
	if !ok || p.GroupID != groupID || p.IsDeleted {
		return domain.ErrNotFound
	}
	p.IsDeleted = true
	return nil
}

type memVenueRepo struct {
	venues map[int64]*domain.Venue
	nextID int64
}

func newMemVenueRepo() *memVenueRepo {
	return &memVenueRepo{venues: map[int64]*domain.Venue{}}
}

func (m *memVenueRepo) ListByGroup(ctx context.Context, groupID int64, page domain.PageRequest) ([]*domain.Venue, int, error) {
	var all []*domain.Venue
	for _, v := range m.venues {
		if v.GroupID == groupID && !v.IsDeleted {
			cp := *v
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	if page.Paginated() {
		start := page.Offset()
		if start > total {
			start = total
		}
		end := start + page.Limit
		if end > total {
			end = total
		}
		all = all[start:end]
	}
	return all, total, nil
}

func (m *memVenueRepo) GetByID(ctx context.Context, groupID, id int64) (*domain.Venue, error) {
	v, ok := m.venues[id]
	if !ok || v.GroupID != groupID || v.IsDeleted {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memVenueRepo) FindDuplicate(ctx context.Context, groupID int64, name string, excludeID int64) (*domain.Venue, error) {
	for _, v := range m.venues {
		if v.GroupID == groupID && !v.IsDeleted && v.ID != excludeID && strings.EqualFold(v.Name, name) {
			cp := *v
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memVenueRepo) Create(ctx context.Context, venue *domain.Venue) error {
	m.nextID++
	venue.ID = m.nextID
	cp := *venue
	m.venues[venue.ID] = &cp
	return nil
}

func (m *memVenueRepo) Update(ctx context.Context, venue *domain.Venue) error {
	existing, ok := m.venues[venue.ID]
	if !ok || existing.GroupID != venue.GroupID || existing.IsDeleted {
		return domain.ErrNotFound
	}
	cp := *venue
	m.venues[venue.ID] = &cp
	return nil
}

func (m *memVenueRepo) SoftDelete(ctx context.Context, groupID, id int64) error {
	v, ok := m.venues[id]
	if !ok || v.GroupID != groupID || v.IsDeleted {
		return domain.ErrNotFound
	}
	v.IsDeleted = true
	return nil
}

type memFoodRepo struct {
	foods  map[int64]*domain.Food
	nextID int64
}

func newMemFoodRepo() *memFoodRepo {
	return &memFoodRepo{foods: map[int64]*domain.Food{}}
}

func (m *memFoodRepo) ListByGroup(ctx context.Context, groupID int64) ([]*domain.Food, error) {
	var out []*domain.Food
	for _, f := range m.foods {
		if f.GroupID == groupID && !f.IsDeleted {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memFoodRepo) GetByID(ctx context.Context, groupID, id int64) (*domain.Food, error) {
	f, ok := m.foods[id]
	if !ok || f.GroupID != groupID || f.IsDeleted {
		return nil, domain.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memFoodRepo) FindDuplicate(ctx context.Context, groupID int64, name string, excludeID int64) (*domain.Food, error) {
	for _, f := range m.foods {
		if f.GroupID == groupID && !f.IsDeleted && f.ID != excludeID && strings.EqualFold(f.Name, name) {
			cp := *f
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memFoodRepo) Create(ctx context.Context, food *domain.Food) error {
	m.nextID++
	food.ID = m.nextID
	cp := *food
	m.foods[food.ID] = &cp
	return nil
}

func (m *memFoodRepo) Update(ctx context.Context, food *domain.Food) error {
	existing, ok := m.foods[food.ID]
	if !ok || existing.GroupID != food.GroupID || existing.IsDeleted {
		return domain.ErrNotFound
	}
	cp := *food
	m.foods[food.ID] = &cp
	return nil
}

func (m *memFoodRepo) SoftDelete(ctx context.Context, groupID, id int64) error {
	f, ok := m.foods[id]
	if !ok || f.GroupID != groupID || f.IsDeleted {
		return domain.ErrNotFound
	}
	f.IsDeleted = true
	return nil
}

type memCategoryRepo struct {
	categories []*domain.Category
	nextID     int64
}

func newMemCategoryRepo() *memCategoryRepo {
	return &memCategoryRepo{}
}

func (m *memCategoryRepo) List(ctx context.Context) ([]*domain.Category, error) {
	out := make([]*domain.Category, len(m.categories))
	for i, c := range m.categories {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

func (m *memCategoryRepo) Create(ctx context.Context, category *domain.Category) error {
	m.nextID++
	category.ID = m.nextID
	cp := *category
	m.categories = append(m.categories, &cp)
	return nil
}

// memGatheringRepo records calls and serves canned views; the real
// transactional behavior is covered by the repository tests.
type memGatheringRepo struct {
	nextID      int64
	created     map[int64]*domain.GatheringView
	lastFoods   []domain.FoodLine
	lastAtts    []domain.Attendance
	deleted     map[int64]bool
	failCreates bool
}

func newMemGatheringRepo() *memGatheringRepo {
	return &memGatheringRepo{
		created: map[int64]*domain.GatheringView{},
		deleted: map[int64]bool{},
	}
}

func (m *memGatheringRepo) Create(ctx context.Context, g *domain.Gathering, foods []domain.FoodLine, attendances []domain.Attendance) error {
	if m.failCreates {
		return errors.New("database unavailable")
	}
	m.nextID++
	g.ID = m.nextID
	m.lastFoods = foods
	m.lastAtts = attendances
	m.created[g.ID] = m.buildView(g, foods, attendances)
	return nil
}

func (m *memGatheringRepo) Update(ctx context.Context, g *domain.Gathering, foods []domain.FoodLine, attendances []domain.Attendance) error {
	existing, ok := m.created[g.ID]
	if !ok || existing.GroupID != g.GroupID || m.deleted[g.ID] {
		return domain.ErrNotFound
	}
	if g.Photo == "" {
		g.Photo = existing.Photo
	}
	m.lastFoods = foods
	m.lastAtts = attendances
	m.created[g.ID] = m.buildView(g, foods, attendances)
	return nil
}

func (m *memGatheringRepo) SoftDelete(ctx context.Context, groupID, id int64) error {
	v, ok := m.created[id]
	if !ok || v.GroupID != groupID || m.deleted[id] {
		return domain.ErrNotFound
	}
	m.deleted[id] = true
	return nil
}

func (m *memGatheringRepo) GetView(ctx context.Context, groupID, id int64) (*domain.GatheringView, error) {
	v, ok := m.created[id]
	if !ok || v.GroupID != groupID || m.deleted[id] {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *memGatheringRepo) ListViews(ctx context.Context, groupID int64, page domain.PageRequest) ([]*domain.GatheringView, int, error) {
	var all []*domain.GatheringView
	for id, v := range m.created {
		if v.GroupID == groupID && !m.deleted[id] {
			all = append(all, v)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	total := len(all)
	if page.Paginated() {
		start := page.Offset()
		if start > total {
			start = total
		}
		end := start + page.Limit
		if end > total {
			end = total
		}
		all = all[start:end]
	}
	return all, total, nil
}

func (m *memGatheringRepo) StatsViews(ctx context.Context, groupID int64) ([]*domain.GatheringView, error) {
	var all []*domain.GatheringView
	for id, v := range m.created {
		if v.GroupID == groupID && !m.deleted[id] {
			all = append(all, v)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Date.Before(all[j].Date) })
	return all, nil
}

func (m *memGatheringRepo) ListWithPhotos(ctx context.Context, minBytes int) ([]*domain.Gathering, error) {
	var out []*domain.Gathering
	for id, v := range m.created {
		if !m.deleted[id] && len(v.Photo) >= minBytes {
			cp := v.Gathering
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memGatheringRepo) UpdatePhoto(ctx context.Context, id int64, photo string) error {
	v, ok := m.created[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.Photo = photo
	return nil
}

func (m *memGatheringRepo) buildView(g *domain.Gathering, foods []domain.FoodLine, attendances []domain.Attendance) *domain.GatheringView {
	lines := make([]domain.FoodLineView, len(foods))
	for i, f := range foods {
		lines[i] = domain.FoodLineView{FoodLine: f}
	}
	atts := make([]domain.AttendanceView, len(attendances))
	for i, a := range attendances {
		atts[i] = domain.AttendanceView{Attendance: a}
	}
	return &domain.GatheringView{
		Gathering:     *g,
		FoodLines:     lines,
		Attendances:   atts,
		AttendeeCount: len(atts),
	}
}
