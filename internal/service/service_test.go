package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/internal/events"
	"ledger-service/internal/repository/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func int64Ptr(v int64) *int64 {
	return &v
}

type publishedEvent struct {
	key   events.RoutingKey
	event events.TransactionEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key events.RoutingKey, event events.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{key: key, event: event})
	return p.err
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) keys() []events.RoutingKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.RoutingKey, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.key)
	}
	return out
}

type memoryCache struct {
	mu          sync.Mutex
	value       *domain.Dashboard
	generation  int64
	sets        int
	invalidated int
	getErr      error
}

func (c *memoryCache) Get(context.Context) (domain.Dashboard, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return domain.Dashboard{}, 0, false, c.getErr
	}
	if c.value == nil {
		return domain.Dashboard{}, c.generation, false, nil
	}
	return *c.value, c.generation, true, nil
}

func (c *memoryCache) Set(_ context.Context, d domain.Dashboard, generation int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return nil
	}
	c.value = &d
	c.sets++
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
	c.generation++
	c.invalidated++
	return nil
}

// pausingStore blocks the first dashboard query after it has computed its
// result until resume is closed.
type pausingStore struct {
	*memory.Store
	computed chan struct{}
	resume   chan struct{}
}

func (s *pausingStore) Transactions() domain.TransactionRepository {
	return &pausingTransactions{TransactionRepository: s.Store.Transactions(), store: s}
}

type pausingTransactions struct {
	domain.TransactionRepository
	store *pausingStore
}

func (r *pausingTransactions) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	d, err := r.TransactionRepository.Dashboard(ctx)
	close(r.store.computed)
	<-r.store.resume
	return d, err
}
