package snippet

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/quota"
	"github.com/dmitrymomot/snipflow/pkg/validator"
)

var ErrNotFound = errors.New("snippet: not found")

// Snippet is a stored code snippet.
type Snippet struct {
	ID          uuid.UUID `json:"id"`
	PrincipalID uuid.UUID `json:"principalId"`
	Title       string    `json:"title"`
	Language    string    `json:"language"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Input is the user-supplied part of a snippet.
type Input struct {
	Title    string `json:"title"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

const (
	maxTitle    = 200
	maxLanguage = 32
	maxContent  = 256 << 10
)

func (in Input) normalize() Input {
	in.Title = strings.TrimSpace(in.Title)
	in.Language = strings.ToLower(strings.TrimSpace(in.Language))
	return in
}

func (in Input) validate() error {
	return validator.Apply(
		validator.Required("title", in.Title),
		validator.MaxLen("title", in.Title, maxTitle),
		validator.MaxLen("language", in.Language, maxLanguage),
		validator.Required("content", in.Content),
		validator.MaxBytes("content", in.Content, maxContent),
	)
}

// ClaimFunc runs insert while holding one snippet slot claimed against qs.
// The slot is handed back when insert fails.
type ClaimFunc func(ctx context.Context, qs quota.Store, insert func(ctx context.Context) error) error

// ReleaseFunc returns a snippet slot against qs.
type ReleaseFunc func(ctx context.Context, qs quota.Store) error

// Repository stores snippets. Create and Delete apply the slot change and the
// row change as one unit: either both take effect or neither does.
type Repository interface {
	Create(ctx context.Context, s *Snippet, claim ClaimFunc) error
	Delete(ctx context.Context, principalID, id uuid.UUID, release ReleaseFunc) error
	Get(ctx context.Context, principalID, id uuid.UUID) (*Snippet, error)
	List(ctx context.Context, principalID uuid.UUID, limit int) ([]Snippet, error)
}
