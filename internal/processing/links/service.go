package links

import (
	"context"
	"errors"
	"strings"
	"time"
)

// maxGenerateAttempts bounds the collision retry loop in CreateShortLink.
const maxGenerateAttempts = 5

type Service struct {
	linkRepo LinkRepository
	outbox   ClickOutboxRepository
	gen      Generator
	idLength int
	now      func() time.Time
}

func NewService(linkRepo LinkRepository, outbox ClickOutboxRepository, gen Generator, idLength int) *Service {
	if idLength <= 0 {
		idLength = DefaultShortIDLength
	}

	return &Service{
		linkRepo: linkRepo,
		outbox:   outbox,
		gen:      gen,
		idLength: idLength,
		now:      time.Now,
	}
}

// CreateShortLink persists a new link for url under a freshly generated short
// id. Any non-blank string is accepted as a URL; no shape validation is done.
// Identical URLs shortened twice get two independent links.
func (s *Service) CreateShortLink(ctx context.Context, url string) (*Link, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrInvalidURL
	}

	link := &Link{
		URL:          url,
		VisitHistory: []Visit{},
		CreatedAt:    s.now().UTC(),
	}

	for range maxGenerateAttempts {
		shortID, err := s.gen.Generate(s.idLength)
		if err != nil {
			return nil, err
		}
		link.ShortID = shortID

		if err := s.linkRepo.Insert(ctx, link); err != nil {
			if errors.Is(err, ErrShortIDTaken) {
				continue
			}
			return nil, err
		}

		return link, nil
	}

	return nil, ErrIDExhausted
}

// ResolveAndRecordVisit looks up the link for shortID, durably appends a
// visit stamped with the current time, and returns the original URL. The
// append happens in one atomic store update, so success implies the visit is
// already persisted and visible to analytics.
func (s *Service) ResolveAndRecordVisit(ctx context.Context, shortID string) (string, error) {
	shortID = strings.TrimSpace(shortID)
	if shortID == "" {
		return "", ErrNotFound
	}

	link, err := s.linkRepo.AppendVisit(ctx, shortID, Visit{Timestamp: s.now().UTC()})
	if err != nil {
		return "", err
	}

	return link.URL, nil
}

// PublishClick enqueues a click event for the downstream Kafka pipeline.
// Best effort: a nil outbox or empty shortID is a no-op. The visit itself is
// already durable by the time this runs.
func (s *Service) PublishClick(ctx context.Context, shortID string, occurredAt time.Time) error {
	if s.outbox == nil || strings.TrimSpace(shortID) == "" {
		return nil
	}
	return s.outbox.EnqueueClick(ctx, shortID, occurredAt.UTC())
}

// ListAll returns every link in the store's natural order. Callers must not
// rely on any particular ordering.
func (s *Service) ListAll(ctx context.Context) ([]Link, error) {
	return s.linkRepo.FindAll(ctx)
}

// GetAnalytics recomputes click aggregates from the link's full visit
// history at query time. Both windows end at now and are inclusive on both
// ends.
func (s *Service) GetAnalytics(ctx context.Context, shortID string) (*Analytics, error) {
	shortID = strings.TrimSpace(shortID)
	if shortID == "" {
		return nil, ErrNotFound
	}

	link, err := s.linkRepo.FindByShortID(ctx, shortID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	return &Analytics{
		ShortID:           link.ShortID,
		OriginalURL:       link.URL,
		CreatedAt:         link.CreatedAt,
		TotalClicks:       len(link.VisitHistory),
		ClicksLast24Hours: countWithin(link.VisitHistory, now.Add(-24*time.Hour), now),
		ClicksLast7Days:   countWithin(link.VisitHistory, now.AddDate(0, 0, -7), now),
		VisitHistory:      link.VisitHistory,
	}, nil
}

func countWithin(visits []Visit, from, to time.Time) int {
	n := 0
	for _, v := range visits {
		ts := v.Timestamp.UTC()
		if !ts.Before(from) && !ts.After(to) {
			n++
		}
	}
	return n
}
