package domain

import (
	"context"
	"time"
)

// Person is a group member who can attend gatherings and own venues.
type Person struct {
	ID        int64      `json:"id"`
	Name      string     `json:"nombre"`
	Nickname  string     `json:"apodo,omitempty"`
	BirthDate *time.Time `json:"fechaNacimiento,omitempty"`
	GroupID   int64      `json:"grupoId"`
	IsDeleted bool       `json:"isDeleted"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// PersonRef is the trimmed person projection embedded in denormalized views.
type PersonRef struct {
	Name     string `json:"nombre"`
	Nickname string `json:"apodo,omitempty"`
}

// Venue is a place where gatherings happen, optionally owned by a member.
type Venue struct {
	ID            int64     `json:"id"`
	Name          string    `json:"nombre"`
	Address       string    `json:"direccion,omitempty"`
	OwnerPersonID *int64    `json:"idPersona,omitempty"`
	GroupID       int64     `json:"grupoId"`
	IsDeleted     bool      `json:"isDeleted"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	// Owner is populated on reads that embed the venue owner.
	Owner *PersonRef `json:"Dueño,omitempty"`
}

// FoodType says whether a food is bought or made at the venue.
type FoodType string

const (
	FoodOrdered    FoodType = "Pedida"
	FoodHomeCooked FoodType = "Casera"
)

// ValidFoodType reports whether t is one of the known food types.
func ValidFoodType(t FoodType) bool {
	return t == FoodOrdered || t == FoodHomeCooked
}

// Food is a dish the group serves at gatherings.
type Food struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nombre"`
	Type      FoodType  `json:"tipo"`
	GroupID   int64     `json:"grupoId"`
	IsDeleted bool      `json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Category is the legacy global food category. Superseded by the per-line
// meal category on gathering food lines but still served read/write.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"nombre"`
}

// PageRequest carries list pagination and ordering. Limit -1 disables
// pagination entirely.
type PageRequest struct {
	Page      int
	Limit     int
	SortField string
	SortOrder string
}

// Paginated reports whether the request asks for a bounded page.
func (p PageRequest) Paginated() bool {
	return p.Limit > 0
}

// Offset returns the row offset for the requested page.
func (p PageRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// PageMeta describes the full result set a page was cut from.
type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// PersonRepository defines data access for persons. All operations are
// scoped by group id; ids outside the group behave as missing rows.
type PersonRepository interface {
	ListByGroup(ctx context.Context, groupID int64) ([]*Person, error)
	GetByID(ctx context.Context, groupID, id int64) (*Person, error)
	// FindDuplicate returns a non-deleted person in the group whose name or
	// non-empty nickname matches case-insensitively, excluding excludeID.
	FindDuplicate(ctx context.Context, groupID int64, name, nickname string, excludeID int64) (*Person, error)
	Create(ctx context.Context, person *Person) error
	Update(ctx context.Context, person *Person) error
	SoftDelete(ctx context.Context, groupID, id int64) error
}

// VenueRepository defines data access for venues.
type VenueRepository interface {
	ListByGroup(ctx context.Context, groupID int64, page PageRequest) ([]*Venue, int, error)
	GetByID(ctx context.Context, groupID, id int64) (*Venue, error)
	FindDuplicate(ctx context.Context, groupID int64, name string, excludeID int64) (*Venue, error)
	Create(ctx context.Context, venue *Venue) error
	Update(ctx context.Context, venue *Venue) error
	SoftDelete(ctx context.Context, groupID, id int64) error
}

// FoodRepository defines data access for foods.
type FoodRepository interface {
	ListByGroup(ctx context.Context, groupID int64) ([]*Food, error)
	GetByID(ctx context.Context, groupID, id int64) (*Food, error)
	FindDuplicate(ctx context.Context, groupID int64, name string, excludeID int64) (*Food, error)
	Create(ctx context.Context, food *Food) error
	Update(ctx context.Context, food *Food) error
	SoftDelete(ctx context.Context, groupID, id int64) error
}

// CategoryRepository defines data access for the legacy global categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]*Category, error)
	Create(ctx context.Context, category *Category) error
}
