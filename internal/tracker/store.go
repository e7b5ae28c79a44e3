package tracker

import (
	"sync"
	"time"

	logx "goalbot/pkg/logx"
)

// Clock abstracts wall time so day-boundary and retention logic is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }

const dayFormat = "2006-01-02"

// Record is the mutable tracked state for one identity key.
// All mutation happens through Store methods.
type Record struct {
	FirstSeenAt   time.Time
	LastUpdatedAt time.Time
	VerifiedAt    time.Time // zero until the settle-and-verify pass confirmed the play
	Posted        bool
	UpdateCount   int
	Goal          Goal
}

// Store maps identity key -> tracked goal record. It is safe for concurrent
// use; every mutation is serialized under one mutex, which also upholds
// "at most one record per key" when cycles overlap.
type Store struct {
	mu        sync.Mutex
	clock     Clock
	loc       *time.Location
	retention time.Duration
	log       logx.Logger

	day     string // calendar day the table belongs to, in loc
	records map[string]*Record
}

func NewStore(clock Clock, loc *time.Location, retention time.Duration, log logx.Logger) *Store {
	if clock == nil {
		clock = SystemClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	if retention <= 0 {
		retention = 5 * time.Hour
	}
	s := &Store{
		clock:     clock,
		loc:       loc,
		retention: retention,
		log:       log,
		records:   map[string]*Record{},
	}
	s.day = clock.Now().In(loc).Format(dayFormat)
	return s
}

// SetRetention applies a new retention window (hot reload).
func (s *Store) SetRetention(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.retention = d
	s.mu.Unlock()
}

// Get returns a copy of the record for key.
func (s *Store) Get(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Track creates a record for the goal's key if none exists, claiming the
// slot before any delayed workflow begins. Reports whether it was created.
func (s *Store) Track(g Goal) bool {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	key := g.Key()
	if _, ok := s.records[key]; ok {
		return false
	}
	s.records[key] = &Record{
		FirstSeenAt:   now,
		LastUpdatedAt: now,
		Goal:          g,
	}
	return true
}

// MarkVerified stamps the record as having survived the settle-and-verify
// pass, so a publish retry on a later cycle can skip the delay.
func (s *Store) MarkVerified(key string) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key]; ok {
		r.VerifiedAt = now
	}
}

// MarkPosted records a confirmed publish. Never called speculatively.
func (s *Store) MarkPosted(key string) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key]; ok {
		r.Posted = true
		r.LastUpdatedAt = now
	}
}

// ApplyUpdate replaces the tracked goal after an observation of the same
// key. consumeSlot increments the correction budget; it is true when a
// correction was actually sent (or when empty diffs are configured to count).
func (s *Store) ApplyUpdate(key string, g Goal, consumeSlot bool) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		return
	}
	r.Goal = g
	r.LastUpdatedAt = now
	if consumeSlot {
		r.UpdateCount++
	}
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}

// Clear drops every record. Run at startup and on day rollover.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = map[string]*Record{}
	s.day = s.clock.Now().In(s.loc).Format(dayFormat)
}

// SameDay reports whether t falls on the current calendar day in the
// reference time zone.
func (s *Store) SameDay(t time.Time) bool {
	return t.In(s.loc).Format(dayFormat) == s.clock.Now().In(s.loc).Format(dayFormat)
}

// FindByEvent returns the tracked record carrying the given scoring event,
// regardless of identity key. The provider keeps a play's event id stable
// while revising announced fields (scorer, score, period), so this is how a
// revision is routed back to the record it belongs to.
func (s *Store) FindByEvent(gameID, eventID int) (string, Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, r := range s.records {
		if r.Goal.GameID == gameID && r.Goal.EventID == eventID {
			return key, *r, true
		}
	}
	return "", Record{}, false
}

// HasPostedDuplicate scans tracked records of the same game that were
// already posted today for one that looks like the same physical goal.
// This catches clock-shifted re-observations that land under a new key.
func (s *Store) HasPostedDuplicate(g Goal) bool {
	now := s.clock.Now()
	today := now.In(s.loc).Format(dayFormat)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Goal.GameID != g.GameID || !r.Posted {
			continue
		}
		if r.LastUpdatedAt.In(s.loc).Format(dayFormat) != today {
			continue
		}
		if r.Goal.SameScoringEvent(g) {
			return true
		}
	}
	return false
}

// Sweep evicts stale records: everything once the day rolls over, otherwise
// records older than the retention window or last touched on a prior day.
// Returns the number of evicted records.
func (s *Store) Sweep() int {
	now := s.clock.Now()
	today := now.In(s.loc).Format(dayFormat)

	s.mu.Lock()
	defer s.mu.Unlock()

	if today != s.day {
		n := len(s.records)
		s.records = map[string]*Record{}
		s.day = today
		if n > 0 {
			s.log.Info("day rolled over; cleared tracked goals", logx.Int("evicted", n))
		}
		return n
	}

	removed := 0
	for key, r := range s.records {
		stale := now.Sub(r.LastUpdatedAt) > s.retention ||
			r.LastUpdatedAt.In(s.loc).Format(dayFormat) != today
		if stale {
			delete(s.records, key)
			removed++
		}
	}
	if removed > 0 {
		s.log.Debug("swept stale tracked goals", logx.Int("evicted", removed))
	}
	return removed
}
