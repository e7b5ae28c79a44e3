package tracker

import (
	"sync"

	logx "goalbot/pkg/logx"
)

// Resolution classifies one observed goal against the tracked state.
type Resolution int

const (
	// ResolutionNew means the goal should enter the announce workflow.
	// Covers both a first observation (record just created) and the retry
	// path for a tracked-but-never-posted record.
	ResolutionNew Resolution = iota

	// ResolutionDuplicate means an already-posted goal from the same game
	// and day matches on period, clock minute, scorer and score; nothing
	// further happens.
	ResolutionDuplicate

	// ResolutionUpdate means the key is posted, within today, and still has
	// correction budget; the workflow should diff and maybe correct.
	ResolutionUpdate

	// ResolutionIgnore means the record is fully processed or stale.
	ResolutionIgnore
)

func (r Resolution) String() string {
	switch r {
	case ResolutionNew:
		return "new"
	case ResolutionDuplicate:
		return "duplicate"
	case ResolutionUpdate:
		return "update"
	default:
		return "ignore"
	}
}

// Resolver decides, per observed goal, which workflow path applies.
type Resolver struct {
	store *Store
	log   logx.Logger

	mu         sync.Mutex
	maxUpdates int
}

func NewResolver(store *Store, maxUpdates int, log logx.Logger) *Resolver {
	if maxUpdates < 0 {
		maxUpdates = 0
	}
	return &Resolver{store: store, maxUpdates: maxUpdates, log: log}
}

// SetMaxUpdates applies a new correction budget (hot reload).
func (r *Resolver) SetMaxUpdates(n int) {
	if n < 0 {
		return
	}
	r.mu.Lock()
	r.maxUpdates = n
	r.mu.Unlock()
}

func (r *Resolver) MaxUpdates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxUpdates
}

// Resolve classifies the goal and returns the identity key of the record
// the workflow must address. For a first observation it claims the key in
// the store before any delayed verification begins.
//
// When the exact key misses, the same scoring event (game + event id) may
// still be tracked under a different key: the provider revised a field that
// participates in identity, typically the credited scorer. Such a revision
// is routed to the existing record instead of being announced again. The
// soft duplicate scan runs last; it only covers clock-shifted
// re-observations where the provider also re-issued the event id.
func (r *Resolver) Resolve(g Goal) (Resolution, string) {
	key := g.Key()

	rec, ok := r.store.Get(key)
	if !ok {
		if evKey, evRec, found := r.store.FindByEvent(g.GameID, g.EventID); found {
			return r.resolveRevision(g, evKey, evRec), evKey
		}
		if r.store.HasPostedDuplicate(g) {
			r.log.Debug("suppressed clock-shifted duplicate",
				logx.String("key", key), logx.String("scorer", g.Scorer))
			return ResolutionDuplicate, key
		}
		r.store.Track(g)
		return ResolutionNew, key
	}

	if !rec.Posted {
		// Tracked but never announced: retry the publish path.
		return ResolutionNew, key
	}

	if rec.UpdateCount < r.MaxUpdates() && r.store.SameDay(rec.LastUpdatedAt) {
		return ResolutionUpdate, key
	}

	return ResolutionIgnore, key
}

// resolveRevision classifies a key-changing revision of an already tracked
// scoring event.
func (r *Resolver) resolveRevision(g Goal, key string, rec Record) Resolution {
	if !rec.Posted {
		// Never announced: fold the revision in so the announcement carries
		// the provider's current values.
		r.store.ApplyUpdate(key, g, false)
		return ResolutionNew
	}
	if rec.UpdateCount < r.MaxUpdates() && r.store.SameDay(rec.LastUpdatedAt) {
		r.log.Debug("revision of announced goal",
			logx.String("key", key), logx.String("scorer", g.Scorer))
		return ResolutionUpdate
	}
	return ResolutionIgnore
}
