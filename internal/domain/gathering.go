package domain

import (
	"context"
	"time"
)

// MealCategory slots a food line into a part of the day.
type MealCategory string

const (
	MealLunch   MealCategory = "Almuerzo"
	MealSnack   MealCategory = "Merienda"
	MealDinner  MealCategory = "Cena"
	MealDessert MealCategory = "Postre"
)

// ValidMealCategory reports whether c is one of the known meal categories.
func ValidMealCategory(c MealCategory) bool {
	switch c {
	case MealLunch, MealSnack, MealDinner, MealDessert:
		return true
	}
	return false
}

// Gathering is the aggregate root: one event at a venue, owning its food
// lines and attendance records exclusively. Both child collections are
// replaced in full on every update.
type Gathering struct {
	ID      int64     `json:"id"`
	Date    time.Time `json:"fecha"`
	Photo   string    `json:"fotoJuntada,omitempty"`
	VenueID int64     `json:"idSede"`
	GroupID int64     `json:"grupoId"`

	IsDeleted bool      `json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FoodLine records one food served at a gathering under one meal category.
type FoodLine struct {
	ID           int64        `json:"id"`
	GatheringID  int64        `json:"idJuntada"`
	FoodID       int64        `json:"idComida"`
	MealCategory MealCategory `json:"categoria"`
}

// Attendance records one person's presence plus the household tasks they did.
type Attendance struct {
	ID          int64 `json:"id"`
	GatheringID int64 `json:"idJuntada"`
	PersonID    int64 `json:"idPersona"`
	WashedUp    bool  `json:"lavo"`
	Cooked      bool  `json:"cocino"`
	Shopped     bool  `json:"compras"`
	Dessert     bool  `json:"postre"`
}

// FoodRef is the trimmed food projection embedded in denormalized views.
type FoodRef struct {
	Name string   `json:"nombre"`
	Type FoodType `json:"tipo"`
}

// FoodLineView is a food line resolved against its food item.
type FoodLineView struct {
	FoodLine
	Food FoodRef `json:"Comida"`
}

// AttendanceView is an attendance record resolved against its person.
type AttendanceView struct {
	Attendance
	Person PersonRef `json:"Persona"`
}

// GatheringView is the denormalized read model: the gathering plus its venue
// (with owner), resolved food lines, resolved attendances and a derived
// attendee count.
type GatheringView struct {
	Gathering
	Venue         *Venue           `json:"Sede,omitempty"`
	FoodLines     []FoodLineView   `json:"DetalleComidas"`
	Attendances   []AttendanceView `json:"Asistencias"`
	AttendeeCount int              `json:"cantidadAsistentes"`
}

// GatheringRepository defines data access for the gathering aggregate.
//
// Create and Update run in a single transaction: the parent row is written
// first, then both child collections are validated and inserted. Update
// deletes every existing child row and inserts the new set; the parent-row
// UPDATE at the start of the transaction takes the row lock that serializes
// concurrent replacements of the same gathering.
type GatheringRepository interface {
	Create(ctx context.Context, g *Gathering, foods []FoodLine, attendances []Attendance) error
	Update(ctx context.Context, g *Gathering, foods []FoodLine, attendances []Attendance) error
	SoftDelete(ctx context.Context, groupID, id int64) error

	// GetView assembles the denormalized view with a single joined query.
	GetView(ctx context.Context, groupID, id int64) (*GatheringView, error)
	// ListViews assembles views with three independent queries (base rows,
	// food lines, attendances) merged in memory, avoiding join fan-out.
	ListViews(ctx context.Context, groupID int64, page PageRequest) ([]*GatheringView, int, error)
	// StatsViews returns every non-deleted gathering of the group in
	// ascending date order with full child collections.
	StatsViews(ctx context.Context, groupID int64) ([]*GatheringView, error)

	// ListWithPhotos returns non-deleted gatherings whose stored photo is at
	// least minBytes long, for the offline normalization pass.
	ListWithPhotos(ctx context.Context, minBytes int) ([]*Gathering, error)
	UpdatePhoto(ctx context.Context, id int64, photo string) error
}
