package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Fetcher interface {
	Fetch(ctx context.Context, res Resource, values ...string) (json.RawMessage, error)
}

type Recorder interface {
	RecordCacheRequest(resource string, status string)
	RecordUpstreamError(resource string)
	ObserveUpstream(resource string, d time.Duration)
	SetCacheEntries(n int)
}

type CacheStatus string

const (
	StatusHit   CacheStatus = "hit"
	StatusMiss  CacheStatus = "miss"
	StatusStale CacheStatus = "stale"
)

type Result struct {
	Body      json.RawMessage
	FetchedAt time.Time
	Status    CacheStatus
}

type Service struct {
	cache   *Cache[json.RawMessage]
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
	metrics Recorder
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

func NewService(cache *Cache[json.RawMessage], fetcher Fetcher, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		cache:   cache,
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now reads the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// Get serves res from the cache, fetching it when the entry is absent or
// stale. The cache lock is not held during the fetch, so concurrent misses
// on one key may each fetch; the last write wins. Failed fetches leave the
// cache untouched.
func (s *Service) Get(ctx context.Context, res Resource, values ...string) (Result, error) {
	key := res.Key(values...)

	entry, ok := s.cache.Get(key)
	if ok && !IsStale(entry, s.ttl, s.now()) {
		s.metrics.RecordCacheRequest(res.Name, string(StatusHit))
		return Result{Body: entry.Value, FetchedAt: entry.FetchedAt, Status: StatusHit}, nil
	}

	status := StatusMiss
	if ok {
		status = StatusStale
	}
	s.metrics.RecordCacheRequest(res.Name, string(status))

	// A client going away should not throw away a fetch that would
	// populate the cache; the upstream timeout still bounds it.
	start := time.Now()
	body, err := s.fetcher.Fetch(context.WithoutCancel(ctx), res, values...)
	s.metrics.ObserveUpstream(res.Name, time.Since(start))
	if err != nil {
		s.metrics.RecordUpstreamError(res.Name)
		return Result{}, fmt.Errorf("fetch %s: %w", key, err)
	}

	fetchedAt := s.now()
	s.cache.Put(key, body, fetchedAt)
	s.metrics.SetCacheEntries(s.cache.Len())

	return Result{Body: body, FetchedAt: fetchedAt, Status: status}, nil
}

// MaxAge is the number of whole seconds r stays fresh after now.
func (s *Service) MaxAge(r Result, now time.Time) int64 {
	left := int64(s.ttl/time.Second) - int64(now.Sub(r.FetchedAt)/time.Second)
	if left < 0 {
		return 0
	}
	return left
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheRequest(string, string) {}
func (nopRecorder) RecordUpstreamError(string) {}
func (nopRecorder) ObserveUpstream(string, time.Duration) {}
func (nopRecorder) SetCacheEntries(int) {}
