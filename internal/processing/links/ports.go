package links

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("link not found")
	ErrInvalidURL   = errors.New("invalid url")
	ErrShortIDTaken = errors.New("short id taken")
	ErrIDExhausted  = errors.New("short id generation attempts exhausted")
)

type LinkRepository interface {
	// Insert persists a new link. The shortId uniqueness constraint is
	// enforced here; Insert returns ErrShortIDTaken on collision.
	Insert(ctx context.Context, link *Link) error
	FindByShortID(ctx context.Context, shortID string) (*Link, error)
	FindAll(ctx context.Context) ([]Link, error)
	// AppendVisit atomically appends one visit to the link's history and
	// returns the updated link. A read-modify-write here would lose
	// concurrent visits, so implementations must use a single atomic update.
	AppendVisit(ctx context.Context, shortID string, visit Visit) (*Link, error)
}

type ClickOutboxRepository interface {
	EnqueueClick(ctx context.Context, shortID string, occurredAt time.Time) error
}

type Generator interface {
	Generate(length int) (string, error)
}
