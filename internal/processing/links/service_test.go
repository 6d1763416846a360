package links

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// --- Hand-written mocks ---

type mockLinkRepo struct {
	insertFn        func(ctx context.Context, link *Link) error
	findByShortIDFn func(ctx context.Context, shortID string) (*Link, error)
	findAllFn       func(ctx context.Context) ([]Link, error)
	appendVisitFn   func(ctx context.Context, shortID string, visit Visit) (*Link, error)
}

func (m *mockLinkRepo) Insert(ctx context.Context, link *Link) error {
	return m.insertFn(ctx, link)
}
func (m *mockLinkRepo) FindByShortID(ctx context.Context, shortID string) (*Link, error) {
	return m.findByShortIDFn(ctx, shortID)
}
func (m *mockLinkRepo) FindAll(ctx context.Context) ([]Link, error) {
	return m.findAllFn(ctx)
}
func (m *mockLinkRepo) AppendVisit(ctx context.Context, shortID string, visit Visit) (*Link, error) {
	return m.appendVisitFn(ctx, shortID, visit)
}

type mockOutboxRepo struct {
	enqueueFn func(ctx context.Context, shortID string, at time.Time) error
}

func (m *mockOutboxRepo) EnqueueClick(ctx context.Context, shortID string, at time.Time) error {
	return m.enqueueFn(ctx, shortID, at)
}

type mockGenerator struct {
	ids []string
	idx int
}

func (m *mockGenerator) Generate(int) (string, error) {
	if m.idx >= len(m.ids) {
		return "", errors.New("no more ids")
	}
	id := m.ids[m.idx]
	m.idx++
	return id, nil
}

// memoryLinkRepo is a mutex-protected in-memory store. AppendVisit holds the
// lock for the whole lookup+append, matching the atomicity the real store
// provides per document.
type memoryLinkRepo struct {
	mu    sync.Mutex
	links map[string]*Link
}

func newMemoryLinkRepo() *memoryLinkRepo {
	return &memoryLinkRepo{links: make(map[string]*Link)}
}

func (r *memoryLinkRepo) Insert(_ context.Context, link *Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.links[link.ShortID]; exists {
		return ErrShortIDTaken
	}
	stored := *link
	stored.VisitHistory = append([]Visit(nil), link.VisitHistory...)
	r.links[link.ShortID] = &stored
	return nil
}

func (r *memoryLinkRepo) FindByShortID(_ context.Context, shortID string) (*Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[shortID]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(link), nil
}

func (r *memoryLinkRepo) FindAll(context.Context) ([]Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Link, 0, len(r.links))
	for _, link := range r.links {
		out = append(out, *snapshot(link))
	}
	return out, nil
}

func (r *memoryLinkRepo) AppendVisit(_ context.Context, shortID string, visit Visit) (*Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[shortID]
	if !ok {
		return nil, ErrNotFound
	}
	link.VisitHistory = append(link.VisitHistory, visit)
	return snapshot(link), nil
}

func snapshot(link *Link) *Link {
	out := *link
	out.VisitHistory = append([]Visit(nil), link.VisitHistory...)
	return &out
}

// --- Service tests ---

var testNow = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestService(lr LinkRepository, or ClickOutboxRepository, gen Generator) *Service {
	svc := NewService(lr, or, gen, 8)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestCreateShortLink_HappyPath(t *testing.T) {
	var inserted *Link
	lr := &mockLinkRepo{
		insertFn: func(_ context.Context, link *Link) error {
			inserted = link
			return nil
		},
	}
	gen := &mockGenerator{ids: []string{"aB3xQ9kP"}}

	svc := newTestService(lr, nil, gen)

	link, err := svc.CreateShortLink(context.Background(), "https://example.com/very/long/path")
	if err != nil {
		t.Fatal(err)
	}
	if link.ShortID != "aB3xQ9kP" {
		t.Errorf("got short id %q, want %q", link.ShortID, "aB3xQ9kP")
	}
	if link.URL != "https://example.com/very/long/path" {
		t.Errorf("got URL %q", link.URL)
	}
	if len(link.VisitHistory) != 0 {
		t.Errorf("new link should have empty visit history, got %d", len(link.VisitHistory))
	}
	if !link.CreatedAt.Equal(testNow) {
		t.Errorf("got createdAt %v, want %v", link.CreatedAt, testNow)
	}
	if inserted == nil {
		t.Fatal("expected Insert to be called")
	}
}

func TestCreateShortLink_EmptyURL(t *testing.T) {
	svc := newTestService(&mockLinkRepo{}, nil, &mockGenerator{})

	for _, raw := range []string{"", "   ", "\t\n"} {
		if _, err := svc.CreateShortLink(context.Background(), raw); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("CreateShortLink(%q): expected ErrInvalidURL, got %v", raw, err)
		}
	}
}

func TestCreateShortLink_PermissiveURL(t *testing.T) {
	lr := &mockLinkRepo{
		insertFn: func(_ context.Context, _ *Link) error { return nil },
	}
	gen := &mockGenerator{ids: []string{"x1y2z3w4"}}

	svc := newTestService(lr, nil, gen)

	// Any non-blank string is accepted; no URL shape validation.
	link, err := svc.CreateShortLink(context.Background(), "not really a url")
	if err != nil {
		t.Fatal(err)
	}
	if link.URL != "not really a url" {
		t.Errorf("got URL %q", link.URL)
	}
}

func TestCreateShortLink_CollisionRetries(t *testing.T) {
	attempts := 0
	lr := &mockLinkRepo{
		insertFn: func(_ context.Context, _ *Link) error {
			attempts++
			if attempts <= 2 {
				return ErrShortIDTaken
			}
			return nil
		},
	}
	gen := &mockGenerator{ids: []string{"id1", "id2", "id3"}}

	svc := newTestService(lr, nil, gen)

	link, err := svc.CreateShortLink(context.Background(), "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if link.ShortID != "id3" {
		t.Errorf("got short id %q, want %q", link.ShortID, "id3")
	}
	if attempts != 3 {
		t.Errorf("expected 3 insert attempts, got %d", attempts)
	}
}

func TestCreateShortLink_RetriesExhausted(t *testing.T) {
	attempts := 0
	lr := &mockLinkRepo{
		insertFn: func(_ context.Context, _ *Link) error {
			attempts++
			return ErrShortIDTaken
		},
	}
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = "dup"
	}

	svc := newTestService(lr, nil, &mockGenerator{ids: ids})

	_, err := svc.CreateShortLink(context.Background(), "https://example.com")
	if !errors.Is(err, ErrIDExhausted) {
		t.Fatalf("expected ErrIDExhausted, got: %v", err)
	}
	if attempts != maxGenerateAttempts {
		t.Errorf("expected %d attempts, got %d", maxGenerateAttempts, attempts)
	}
}

func TestCreateShortLink_NoDeduplication(t *testing.T) {
	repo := newMemoryLinkRepo()
	svc := newTestService(repo, nil, &mockGenerator{ids: []string{"first111", "second22"}})

	a, err := svc.CreateShortLink(context.Background(), "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.CreateShortLink(context.Background(), "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if a.ShortID == b.ShortID {
		t.Errorf("repeated shorten of the same URL must create a new link, both got %q", a.ShortID)
	}
}

func TestResolveAndRecordVisit_ReturnsURLAndAppends(t *testing.T) {
	repo := newMemoryLinkRepo()
	svc := newTestService(repo, nil, &mockGenerator{ids: []string{"aB3xQ9kP"}})

	if _, err := svc.CreateShortLink(context.Background(), "https://example.com/very/long/path"); err != nil {
		t.Fatal(err)
	}

	url, err := svc.ResolveAndRecordVisit(context.Background(), "aB3xQ9kP")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://example.com/very/long/path" {
		t.Errorf("got URL %q", url)
	}

	link, err := repo.FindByShortID(context.Background(), "aB3xQ9kP")
	if err != nil {
		t.Fatal(err)
	}
	if len(link.VisitHistory) != 1 {
		t.Fatalf("expected 1 visit, got %d", len(link.VisitHistory))
	}
	if !link.VisitHistory[0].Timestamp.Equal(testNow) {
		t.Errorf("visit timestamp %v, want %v", link.VisitHistory[0].Timestamp, testNow)
	}
}

func TestResolveAndRecordVisit_SequentialGrowth(t *testing.T) {
	repo := newMemoryLinkRepo()
	svc := NewService(repo, nil, &mockGenerator{ids: []string{"seq00001"}}, 8)

	if _, err := svc.CreateShortLink(context.Background(), "https://example.com"); err != nil {
		t.Fatal(err)
	}

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := svc.ResolveAndRecordVisit(context.Background(), "seq00001"); err != nil {
			t.Fatal(err)
		}
	}

	link, err := repo.FindByShortID(context.Background(), "seq00001")
	if err != nil {
		t.Fatal(err)
	}
	if len(link.VisitHistory) != n {
		t.Fatalf("expected %d visits, got %d", n, len(link.VisitHistory))
	}
	for i := 1; i < n; i++ {
		if link.VisitHistory[i].Timestamp.Before(link.VisitHistory[i-1].Timestamp) {
			t.Errorf("visit %d timestamp decreased", i)
		}
	}
}

func TestResolveAndRecordVisit_UnknownID(t *testing.T) {
	repo := newMemoryLinkRepo()
	svc := newTestService(repo, nil, &mockGenerator{})

	_, err := svc.ResolveAndRecordVisit(context.Background(), "missing1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}

	all, err := repo.FindAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("failed resolve must not persist anything, found %d links", len(all))
	}
}

func TestResolveAndRecordVisit_EmptyID(t *testing.T) {
	svc := newTestService(&mockLinkRepo{}, nil, &mockGenerator{})

	_, err := svc.ResolveAndRecordVisit(context.Background(), "  ")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestResolveAndRecordVisit_ConcurrentVisitsNotLost(t *testing.T) {
	repo := newMemoryLinkRepo()
	svc := NewService(repo, nil, &mockGenerator{ids: []string{"conc0001"}}, 8)

	if _, err := svc.CreateShortLink(context.Background(), "https://example.com"); err != nil {
		t.Fatal(err)
	}

	const parallel = 10
	var wg sync.WaitGroup
	errs := make(chan error, parallel)
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ResolveAndRecordVisit(context.Background(), "conc0001"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	link, err := repo.FindByShortID(context.Background(), "conc0001")
	if err != nil {
		t.Fatal(err)
	}
	if len(link.VisitHistory) != parallel {
		t.Fatalf("expected exactly %d visits, got %d", parallel, len(link.VisitHistory))
	}
}

func TestPublishClick_NilOutbox(t *testing.T) {
	svc := newTestService(&mockLinkRepo{}, nil, &mockGenerator{})

	if err := svc.PublishClick(context.Background(), "abc12345", testNow); err != nil {
		t.Fatalf("nil outbox should be a no-op, got: %v", err)
	}
}

func TestPublishClick_EmptyShortID(t *testing.T) {
	called := false
	or := &mockOutboxRepo{
		enqueueFn: func(_ context.Context, _ string, _ time.Time) error {
			called = true
			return nil
		},
	}

	svc := newTestService(&mockLinkRepo{}, or, &mockGenerator{})

	if err := svc.PublishClick(context.Background(), "", testNow); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("expected no-op for empty short id")
	}
}

func TestPublishClick_Enqueues(t *testing.T) {
	var gotID string
	var gotAt time.Time
	or := &mockOutboxRepo{
		enqueueFn: func(_ context.Context, shortID string, at time.Time) error {
			gotID = shortID
			gotAt = at
			return nil
		},
	}

	svc := newTestService(&mockLinkRepo{}, or, &mockGenerator{})

	if err := svc.PublishClick(context.Background(), "abc12345", testNow); err != nil {
		t.Fatal(err)
	}
	if gotID != "abc12345" {
		t.Errorf("got short id %q", gotID)
	}
	if !gotAt.Equal(testNow) {
		t.Errorf("got occurredAt %v, want %v", gotAt, testNow)
	}
}

func TestListAll_Delegates(t *testing.T) {
	want := []Link{{ShortID: "a1111111"}, {ShortID: "b2222222"}}
	lr := &mockLinkRepo{
		findAllFn: func(context.Context) ([]Link, error) { return want, nil },
	}

	svc := newTestService(lr, nil, &mockGenerator{})

	got, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d links, want %d", len(got), len(want))
	}
}

func TestGetAnalytics_NotFound(t *testing.T) {
	lr := &mockLinkRepo{
		findByShortIDFn: func(_ context.Context, _ string) (*Link, error) {
			return nil, ErrNotFound
		},
	}

	svc := newTestService(lr, nil, &mockGenerator{})

	_, err := svc.GetAnalytics(context.Background(), "missing1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestGetAnalytics_WindowBoundaries(t *testing.T) {
	visits := []Visit{
		{Timestamp: testNow},                          // now: counts everywhere
		{Timestamp: testNow.Add(-1 * time.Hour)},      // 1h ago: 24h + 7d
		{Timestamp: testNow.Add(-24 * time.Hour)},     // exactly 24h ago: inclusive, still in 24h
		{Timestamp: testNow.Add(-25 * time.Hour)},     // 25h ago: 7d only
		{Timestamp: testNow.AddDate(0, 0, -7)},        // exactly 7d ago: inclusive, still in 7d
		{Timestamp: testNow.AddDate(0, 0, -8)},        // 8d ago: total only
		{Timestamp: testNow.Add(-30 * 24 * time.Hour)}, // ancient: total only
	}
	lr := &mockLinkRepo{
		findByShortIDFn: func(_ context.Context, _ string) (*Link, error) {
			return &Link{
				ShortID:      "aB3xQ9kP",
				URL:          "https://example.com",
				CreatedAt:    testNow.AddDate(0, -1, 0),
				VisitHistory: visits,
			}, nil
		},
	}

	svc := newTestService(lr, nil, &mockGenerator{})

	got, err := svc.GetAnalytics(context.Background(), "aB3xQ9kP")
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalClicks != 7 {
		t.Errorf("totalClicks = %d, want 7", got.TotalClicks)
	}
	if got.ClicksLast24Hours != 3 {
		t.Errorf("clicksLast24Hours = %d, want 3", got.ClicksLast24Hours)
	}
	if got.ClicksLast7Days != 5 {
		t.Errorf("clicksLast7Days = %d, want 5", got.ClicksLast7Days)
	}
	if got.ShortID != "aB3xQ9kP" || got.OriginalURL != "https://example.com" {
		t.Errorf("echo fields wrong: %+v", got)
	}
	if len(got.VisitHistory) != len(visits) {
		t.Errorf("expected full visit history, got %d entries", len(got.VisitHistory))
	}
}

func TestGetAnalytics_ReflectsVisitImmediately(t *testing.T) {
	repo := newMemoryLinkRepo()
	svc := newTestService(repo, nil, &mockGenerator{ids: []string{"fresh001"}})

	if _, err := svc.CreateShortLink(context.Background(), "https://example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ResolveAndRecordVisit(context.Background(), "fresh001"); err != nil {
		t.Fatal(err)
	}

	got, err := svc.GetAnalytics(context.Background(), "fresh001")
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalClicks != 1 || got.ClicksLast24Hours != 1 || got.ClicksLast7Days != 1 {
		t.Errorf("fresh visit not reflected: %+v", got)
	}
}
