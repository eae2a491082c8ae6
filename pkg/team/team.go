package team

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/quota"
	"github.com/dmitrymomot/snipflow/pkg/validator"
)

var (
	ErrNotFound       = errors.New("team: member not found")
	ErrAlreadyInvited = errors.New("team: member already exists")
)

// Role of a team member.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Member is a seat on a principal's team.
type Member struct {
	ID          uuid.UUID `json:"id"`
	PrincipalID uuid.UUID `json:"principalId"`
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Input is the user-supplied part of a member.
type Input struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (in Input) normalize() Input {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = RoleMember
	}
	return in
}

func (in Input) validate() error {
	return validator.Apply(
		validator.Required("email", in.Email),
		validator.Email("email", in.Email),
		validator.OneOf("role", in.Role, []Role{RoleMember, RoleAdmin}),
	)
}

// ClaimFunc runs insert while holding one seat claimed against qs. The seat
// is handed back when insert fails.
type ClaimFunc func(ctx context.Context, qs quota.Store, insert func(ctx context.Context) error) error

// ReleaseFunc returns a seat against qs.
type ReleaseFunc func(ctx context.Context, qs quota.Store) error

// Repository stores members. Add and Remove apply the seat change and the row
// change together.
type Repository interface {
	Add(ctx context.Context, m *Member, claim ClaimFunc) error
	Remove(ctx context.Context, principalID, id uuid.UUID, release ReleaseFunc) error
	List(ctx context.Context, principalID uuid.UUID) ([]Member, error)
}
