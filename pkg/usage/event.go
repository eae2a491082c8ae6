package usage

import (
	"time"

	"github.com/google/uuid"
)

// Feature names the metered capability an event belongs to.
type Feature string

const (
	FeatureAPI         Feature = "api"
	FeatureSnippets    Feature = "snippets"
	FeatureTeamMembers Feature = "team_members"
	FeatureAnalytics   Feature = "analytics"
)

// Type is the kind of action recorded.
type Type string

const (
	TypeRequest Type = "request"
	TypeCreate  Type = "create"
	TypeDelete  Type = "delete"
	TypeView    Type = "view"
)

// Event is an immutable record of a metered action.
type Event struct {
	ID          uuid.UUID
	PrincipalID uuid.UUID
	Feature     Feature
	Type        Type
	Quantity    int64
	Metadata    map[string]any
	CreatedAt   time.Time
}

// NewEvent returns an event with quantity one stamped at now.
func NewEvent(principalID uuid.UUID, f Feature, t Type, now time.Time) Event {
	return Event{
		ID:          uuid.New(),
		PrincipalID: principalID,
		Feature:     f,
		Type:        t,
		Quantity:    1,
		CreatedAt:   now.UTC(),
	}
}

// normalize fills the fields a caller may leave empty.
func (e *Event) normalize(now time.Time) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Quantity <= 0 {
		e.Quantity = 1
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now.UTC()
	}
}
