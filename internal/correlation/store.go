package correlation

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"qtbridge/internal/models"
)

// Resolver turns a platform file handle into download URLs
type Resolver func(ctx context.Context, handle string) (models.FileURLs, error)

type echoKey struct {
	platform models.Platform
	scope    models.Scope
}

// Stats is a point-in-time view of the store
type Stats struct {
	Records       int `json:"records"`
	PendingEchoes int `json:"pending_echoes"`
	CachedFiles   int `json:"cached_files"`
}

// Store keeps the bridge's short-lived state: which message produced which
// copy, pending echo guards and resolved file URLs. All methods are safe for
// concurrent use and none of them blocks on I/O while holding the lock.
type Store struct {
	mu      sync.Mutex
	records *lru.Cache[models.MessageIdentity, models.CorrelationRecord]
	reverse map[models.MessageIdentity]models.MessageIdentity
	echoes  map[echoKey]time.Time
	files   map[string]models.FileURLs
	now     func() time.Time
}

type Option func(*Store)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store holding at most maxRecords correlations; the
// least recently used record is dropped first.
func NewStore(maxRecords int, opts ...Option) (*Store, error) {
	s := &Store{
		reverse: make(map[models.MessageIdentity]models.MessageIdentity),
		echoes:  make(map[echoKey]time.Time),
		files:   make(map[string]models.FileURLs),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	records, err := lru.NewWithEvict[models.MessageIdentity, models.CorrelationRecord](maxRecords, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create correlation cache: %w", err)
	}
	s.records = records
	return s, nil
}

// onEvict runs inside Add/Remove calls made with s.mu held
func (s *Store) onEvict(source models.MessageIdentity, record models.CorrelationRecord) {
	if current, ok := s.reverse[record.Target]; ok && current == source {
		delete(s.reverse, record.Target)
	}
}

// Record links source to target, replacing any previous target of source
func (s *Store) Record(source, target models.MessageIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.records.Peek(source); ok && old.Target != target {
		if current, ok := s.reverse[old.Target]; ok && current == source {
			delete(s.reverse, old.Target)
		}
	}

	s.records.Add(source, models.CorrelationRecord{
		Source:    source,
		Target:    target,
		CreatedAt: s.now(),
	})
	s.reverse[target] = source
}

// LookupTarget returns the copy produced for source
func (s *Store) LookupTarget(source models.MessageIdentity) (models.MessageIdentity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records.Get(source)
	if !ok {
		return models.MessageIdentity{}, false
	}
	return record.Target, true
}

// LookupSource returns the message that target was produced from
func (s *Store) LookupSource(target models.MessageIdentity) (models.MessageIdentity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	source, ok := s.reverse[target]
	return source, ok
}

// Forget drops the record for source and its reverse entry
func (s *Store) Forget(source models.MessageIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records.Remove(source)
}

// EvictOlderThan removes records created more than maxAge ago and returns
// how many were removed.
func (s *Store) EvictOlderThan(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	// Keys are ordered oldest first
	for _, key := range s.records.Keys() {
		record, ok := s.records.Peek(key)
		if !ok {
			continue
		}
		if record.CreatedAt.Before(cutoff) {
			s.records.Remove(key)
			removed++
		}
	}
	return removed
}

// MarkEchoExpected notes that the bridge is about to post into scope on
// platform, so the platform's copy of that post should be ignored.
func (s *Store) MarkEchoExpected(platform models.Platform, scope models.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.echoes[echoKey{platform, scope}] = s.now()
}

// ConsumeEchoIfPending reports whether a guard set within window exists for
// scope and clears it either way. Of several concurrent callers at most one
// sees true.
func (s *Store) ConsumeEchoIfPending(platform models.Platform, scope models.Scope, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := echoKey{platform, scope}
	setAt, ok := s.echoes[key]
	if !ok {
		return false
	}
	delete(s.echoes, key)

	age := s.now().Sub(setAt)
	if age < 0 {
		age = -age
	}
	return age < window
}

// ClearEcho retracts a guard whose send never happened
func (s *Store) ClearEcho(platform models.Platform, scope models.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.echoes, echoKey{platform, scope})
}

// FileURLs returns cached URLs for handle, calling resolve on a miss. The
// resolver runs without the lock held; if two callers miss at once both
// resolve and the first stored result is kept.
func (s *Store) FileURLs(ctx context.Context, handle string, resolve Resolver) (models.FileURLs, error) {
	s.mu.Lock()
	urls, ok := s.files[handle]
	s.mu.Unlock()
	if ok {
		return urls, nil
	}

	urls, err := resolve(ctx, handle)
	if err != nil {
		return models.FileURLs{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.files[handle]; ok {
		return existing, nil
	}
	s.files[handle] = urls
	return urls, nil
}

func (s *Store) Len() int {
	return s.records.Len()
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Records:       s.records.Len(),
		PendingEchoes: len(s.echoes),
		CachedFiles:   len(s.files),
	}
}
