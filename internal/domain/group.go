package domain

import (
	"context"
	"time"
)

// User is a local mirror of an identity-provider account. The ID is the
// provider's UUID; rows are upserted on every successful token exchange.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"nombre"`
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Group is the tenant boundary. Every piece of domain data belongs to exactly
// one group, and all guests reach it through the six-character join code.
type Group struct {
	ID      int64  `json:"id"`
	Name    string `json:"nombre"`
	Code    string `json:"codigo"`
	AdminID string `json:"adminId"`

	// Per-group policy knobs, editable by the admin.
	MinAttendancesNewGathering int `json:"minAsistenciasNuevaJuntada"`
	MaxCooks                   int `json:"maxPersonasCocina"`
	MaxShoppers                int `json:"maxPersonasCompras"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CodeAlphabet is the join-code alphabet. I, O, 0 and 1 are excluded so codes
// survive being read out loud.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed join-code length.
const CodeLength = 6

// AccessKind tags the two ways a request can be scoped to a group.
type AccessKind int

const (
	// AccessGuest carries only a group id, resolved from a join code.
	AccessGuest AccessKind = iota
	// AccessAdmin carries the authenticated admin plus their group id.
	AccessAdmin
)

// Access is the resolved tenant scope of a request. Handlers must branch on
// Kind; User is populated only for AccessAdmin.
type Access struct {
	Kind    AccessKind
	GroupID int64
	User    *User
}

// IsAdmin reports whether the access carries an authenticated admin.
func (a Access) IsAdmin() bool {
	return a.Kind == AccessAdmin && a.User != nil
}

// UserRepository defines data access for identity-provider users.
type UserRepository interface {
	// Upsert inserts the user or refreshes email/name/avatar on conflict.
	Upsert(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
}

// GroupRepository defines data access for groups.
type GroupRepository interface {
	Create(ctx context.Context, group *Group) error
	GetByID(ctx context.Context, id int64) (*Group, error)
	GetByCode(ctx context.Context, code string) (*Group, error)
	GetByAdmin(ctx context.Context, adminID string) (*Group, error)
	Update(ctx context.Context, group *Group) error
}
