package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
	"github.com/matescarabino/gatheringTracker-server/internal/observability/metrics"
	"github.com/matescarabino/gatheringTracker-server/internal/security/auth"
)

const codeGenerationAttempts = 5

// AuthService exchanges provider tokens for local users and manages groups.
type AuthService struct {
	users    domain.UserRepository
	groups   domain.GroupRepository
	verifier auth.Verifier
	logger   *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(users domain.UserRepository, groups domain.GroupRepository, verifier auth.Verifier, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{users: users, groups: groups, verifier: verifier, logger: logger}
}

// Sync verifies a provider token, upserts the local user mirror and returns
// the user together with the group they administer, if any.
func (s *AuthService) Sync(ctx context.Context, token string) (*domain.User, *domain.Group, error) {
	claims, err := s.verifier.Verify(token)
	if err != nil {
		return nil, nil, fmt.Errorf("token exchange failed: %w", err)
	}

	user := &domain.User{
		ID:        claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.AvatarURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, nil, err
	}
	// Re-read so created_at reflects the stored row, not this sync.
	stored, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	group, err := s.groups.GetByAdmin(ctx, stored.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return stored, nil, nil
		}
		return nil, nil, err
	}

	s.logger.Info("user synced",
		slog.String("user_id", stored.ID),
		slog.Int64("group_id", group.ID),
	)
	return stored, group, nil
}

// CreateGroupInput carries the group creation payload.
type CreateGroupInput struct {
	Name                       string `json:"nombre"`
	MinAttendancesNewGathering int    `json:"minAsistenciasNuevaJuntada"`
	MaxCooks                   int    `json:"maxPersonasCocina"`
	MaxShoppers                int    `json:"maxPersonasCompras"`
}

// CreateGroup creates a group administered by user with a fresh join code.
// Code collisions are retried with new codes.
func (s *AuthService) CreateGroup(ctx context.Context, user *domain.User, input CreateGroupInput) (*domain.Group, error) {
	if err := validateName(input.Name, "group name"); err != nil {
		return nil, err
	}
	if input.MinAttendancesNewGathering < 0 || input.MaxCooks < 0 || input.MaxShoppers < 0 {
		return nil, domain.Invalid("group limits must not be negative")
	}

	if _, err := s.groups.GetByAdmin(ctx, user.ID); err == nil {
		return nil, domain.Invalid("this account already administers a group")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	maxCooks := input.MaxCooks
	if maxCooks == 0 {
		maxCooks = 2
	}
	maxShoppers := input.MaxShoppers
	if maxShoppers == 0 {
		maxShoppers = 2
	}

	var lastErr error
	for attempt := 0; attempt < codeGenerationAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}
		group := &domain.Group{
			Name:                       strings.TrimSpace(input.Name),
			Code:                       code,
			AdminID:                    user.ID,
			MinAttendancesNewGathering: input.MinAttendancesNewGathering,
			MaxCooks:                   maxCooks,
			MaxShoppers:                maxShoppers,
		}
		if err := s.groups.Create(ctx, group); err != nil {
			// Only a code collision is worth a new code; anything else
			// (connection loss, constraint on another column) fails now.
			if !errors.Is(err, domain.ErrCodeTaken) {
				return nil, err
			}
			lastErr = err
			continue
		}
		metrics.IncrementGroups()
		s.logger.Info("group created",
			slog.Int64("group_id", group.ID),
			slog.String("admin_id", user.ID),
		)
		return group, nil
	}
	return nil, fmt.Errorf("failed to create group: %w", lastErr)
}

// UpdateGroupInput carries the partial group update payload. Nil fields keep
// their stored values.
type UpdateGroupInput struct {
	Name                       *string `json:"nombre"`
	MinAttendancesNewGathering *int    `json:"minAsistenciasNuevaJuntada"`
	MaxCooks                   *int    `json:"maxPersonasCocina"`
	MaxShoppers                *int    `json:"maxPersonasCompras"`
}

// UpdateGroup applies a partial update to the group user administers. The
// join code and admin are immutable.
func (s *AuthService) UpdateGroup(ctx context.Context, user *domain.User, input UpdateGroupInput) (*domain.Group, error) {
	group, err := s.groups.GetByAdmin(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoGroup
		}
		return nil, err
	}

	if input.Name != nil {
		if err := validateName(*input.Name, "group name"); err != nil {
			return nil, err
		}
		group.Name = strings.TrimSpace(*input.Name)
	}
	if input.MinAttendancesNewGathering != nil {
		if *input.MinAttendancesNewGathering < 0 {
			return nil, domain.Invalid("group limits must not be negative")
		}
		group.MinAttendancesNewGathering = *input.MinAttendancesNewGathering
	}
	if input.MaxCooks != nil {
		if *input.MaxCooks < 0 {
			return nil, domain.Invalid("group limits must not be negative")
		}
		group.MaxCooks = *input.MaxCooks
	}
	if input.MaxShoppers != nil {
		if *input.MaxShoppers < 0 {
			return nil, domain.Invalid("group limits must not be negative")
		}
		group.MaxShoppers = *input.MaxShoppers
	}

	if err := s.groups.Update(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// ValidateCode checks a join code (case-insensitively) and returns the group
// it belongs to.
func (s *AuthService) ValidateCode(ctx context.Context, code string) (*domain.Group, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		metrics.ObserveCodeValidation("invalid")
		return nil, domain.Invalid("group code is required")
	}

	group, err := s.groups.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.ObserveCodeValidation("not_found")
		} else {
			metrics.ObserveCodeValidation("error")
		}
		return nil, err
	}
	metrics.ObserveCodeValidation("valid")
	return group, nil
}

// generateCode draws a join code from the 32-letter alphabet with crypto
// randomness. 32 divides 256, so the modulo is unbiased.
func generateCode() (string, error) {
	buf := make([]byte, domain.CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	for i, b := range buf {
		buf[i] = domain.CodeAlphabet[int(b)%len(domain.CodeAlphabet)]
	}
	return string(buf), nil
}

// validateName enforces the shared 3 to 50 character rule.
func validateName(name, field string) error {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 3 || len(trimmed) > 50 {
		return domain.Invalid(field + " must be between 3 and 50 characters")
	}
	return nil
}
