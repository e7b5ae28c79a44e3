// Package notifier owns the outward side of a detected goal: the settle
// delay, the re-verification against the provider, the publish call, and
// the bounded correction workflow.
package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"goalbot/internal/nhl"
	"goalbot/internal/tracker"
	logx "goalbot/pkg/logx"
)

// Publisher is the social-posting collaborator.
type Publisher interface {
	Publish(ctx context.Context, text string) error
	Renew(ctx context.Context) error
}

// PlaySource re-fetches a game's play-by-play for the verify pass.
type PlaySource interface {
	PlayByPlay(ctx context.Context, gameID int) (*nhl.GameFeed, error)
}

// Recorder is the optional announcement audit log.
type Recorder interface {
	Record(ctx context.Context, kind string, g tracker.Goal, text string) error
}

const (
	KindGoal       = "goal"
	KindCorrection = "correction"
)

type Config struct {
	// SettleDelay is the wait before the first publish attempt, giving the
	// provider time to finalize scorer/assist attribution.
	SettleDelay time.Duration

	// PostSettleDelay is the hold after a successful publish before the
	// key is reconsidered, rate-limiting rapid corrections.
	PostSettleDelay time.Duration

	// LockTimeout force-clears a per-key lock older than this, so a
	// crashed workflow cannot wedge a key forever.
	LockTimeout time.Duration

	// CountEmptyUpdates consumes a correction slot on an empty diff.
	CountEmptyUpdates bool
}

func (c *Config) defaults() {
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.PostSettleDelay < 0 {
		c.PostSettleDelay = 0
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = time.Minute
	}
}

// Workflow sequences the verify/publish state machine per identity key.
type Workflow struct {
	store  *tracker.Store
	pub    Publisher
	source PlaySource
	audit  Recorder
	clock  tracker.Clock
	log    logx.Logger

	cmu sync.Mutex
	cfg Config

	// Per-key locks: key -> acquisition time. A lock older than
	// cfg.LockTimeout is considered abandoned and stolen. holds carries the
	// post-publish eligibility time per key; corrections are withheld until
	// it passes, even if the announcing workflow's lock was stolen.
	lmu   sync.Mutex
	locks map[string]time.Time
	holds map[string]time.Time
}

func NewWorkflow(store *tracker.Store, pub Publisher, source PlaySource, clock tracker.Clock, cfg Config, log logx.Logger) *Workflow {
	cfg.defaults()
	if clock == nil {
		clock = tracker.SystemClock()
	}
	return &Workflow{
		store:  store,
		pub:    pub,
		source: source,
		clock:  clock,
		cfg:    cfg,
		log:    log,
		locks:  map[string]time.Time{},
		holds:  map[string]time.Time{},
	}
}

// SetRecorder attaches the optional announcement audit log.
func (w *Workflow) SetRecorder(r Recorder) { w.audit = r }

// SetSource swaps the play-by-play source, e.g. after a provider rebuild.
func (w *Workflow) SetSource(s PlaySource) {
	w.cmu.Lock()
	w.source = s
	w.cmu.Unlock()
}

func (w *Workflow) playSource() PlaySource {
	w.cmu.Lock()
	defer w.cmu.Unlock()
	return w.source
}

// Apply swaps tunables at runtime.
func (w *Workflow) Apply(cfg Config) {
	cfg.defaults()
	w.cmu.Lock()
	w.cfg = cfg
	w.cmu.Unlock()
}

func (w *Workflow) config() Config {
	w.cmu.Lock()
	defer w.cmu.Unlock()
	return w.cfg
}

// AnnounceNew runs the settle-verify-publish sequence for a goal the
// resolver classified as new. key is the identity key of the tracked
// record (the resolver claimed the slot); a record that was verified on an
// earlier cycle skips straight to the publish retry.
func (w *Workflow) AnnounceNew(ctx context.Context, key string, g tracker.Goal) {
	if !w.tryLock(key) {
		w.log.Debug("key locked by another workflow; skipping", logx.String("key", key))
		return
	}
	defer w.unlock(key)

	rec, ok := w.store.Get(key)
	if !ok || rec.Posted {
		return
	}
	cfg := w.config()

	if rec.VerifiedAt.IsZero() {
		if !w.sleep(ctx, cfg.SettleDelay) {
			return
		}

		feed, err := w.playSource().PlayByPlay(ctx, g.GameID)
		if err != nil {
			// Verification is retried from scratch next cycle.
			w.log.Warn("verify fetch failed", logx.String("key", key), logx.Err(err))
			return
		}
		play, present := feed.GoalEvent(g.EventID)
		if !present {
			// The provider retracted or reclassified the play.
			w.log.Info("goal vanished during settle; dropping",
				logx.String("key", key), logx.String("scorer", g.Scorer))
			w.store.Delete(key)
			return
		}
		fresh, err := nhl.GoalFromPlay(play, feed)
		if err != nil {
			w.log.Warn("goal became malformed during settle; dropping",
				logx.String("key", key), logx.Err(err))
			w.store.Delete(key)
			return
		}
		// Announce with the provider's settled values.
		g = fresh
		w.store.ApplyUpdate(key, g, false)
		w.store.MarkVerified(key)
	} else {
		g = rec.Goal
	}

	text := FormatGoal(g)
	if err := w.publishWithRenewal(ctx, text); err != nil {
		if errors.Is(err, ErrRenewFailed) {
			// Unrecoverable for a never-posted record: drop it so the
			// next observation retries from scratch.
			w.log.Error("publish unrecoverable; dropping record",
				logx.String("key", key), logx.Err(err))
			w.store.Delete(key)
			return
		}
		// Leave posted=false; the next cycle retries without re-delaying.
		w.log.Warn("publish failed; will retry next cycle",
			logx.String("key", key), logx.Err(err))
		return
	}

	w.store.MarkPosted(key)
	w.record(ctx, KindGoal, g, text)
	w.log.Info("goal announced",
		logx.String("key", key),
		logx.String("scorer", g.Scorer),
		logx.String("score", g.DisplayScore()))

	// Hold before this key can be reconsidered, so rapid provider edits
	// right after a goal don't turn into a burst of corrections.
	w.beginHold(key, cfg.PostSettleDelay)
	w.sleep(ctx, cfg.PostSettleDelay)
}

// Correct handles an update-candidate observation: diff the announced
// fields and post a correction when something actually changed. key is the
// tracked record's identity key; a revision that changed a key field
// (scorer, score, period) still addresses the original record.
func (w *Workflow) Correct(ctx context.Context, key string, g tracker.Goal) {
	if !w.tryLock(key) {
		w.log.Debug("key locked by another workflow; skipping", logx.String("key", key))
		return
	}
	defer w.unlock(key)

	if w.holdActive(key) {
		w.log.Debug("key within post-publish hold; skipping", logx.String("key", key))
		return
	}

	rec, ok := w.store.Get(key)
	if !ok || !rec.Posted {
		return
	}
	cfg := w.config()

	diff := rec.Goal.Diff(g)
	if len(diff) == 0 {
		if cfg.CountEmptyUpdates {
			w.store.ApplyUpdate(key, g, true)
		}
		return
	}

	text := FormatCorrection(rec.Goal, g)
	if err := w.publishWithRenewal(ctx, text); err != nil {
		// Correction failures don't block future corrections; the next
		// cycle re-evaluates the same update candidate.
		w.log.Warn("correction publish failed; dropped",
			logx.String("key", key), logx.Err(err))
		return
	}

	w.store.ApplyUpdate(key, g, true)
	w.record(ctx, KindCorrection, g, text)
	w.log.Info("correction posted",
		logx.String("key", key),
		logx.Any("changed", diff),
		logx.String("scorer", g.Scorer))
}

// publishWithRenewal attempts one publish; on failure it renews the session
// once and retries once. A failed renewal is reported as ErrRenewFailed.
func (w *Workflow) publishWithRenewal(ctx context.Context, text string) error {
	err := w.pub.Publish(ctx, text)
	if err == nil {
		return nil
	}
	w.log.Warn("publish failed; renewing session", logx.Err(err))

	if rerr := w.pub.Renew(ctx); rerr != nil {
		return rerr
	}
	return w.pub.Publish(ctx, text)
}

func (w *Workflow) record(ctx context.Context, kind string, g tracker.Goal, text string) {
	if w.audit == nil {
		return
	}
	if err := w.audit.Record(ctx, kind, g, text); err != nil {
		w.log.Warn("audit record failed", logx.Err(err))
	}
}

// tryLock claims the per-key lock, stealing it when the holder looks
// abandoned (older than the staleness ceiling).
func (w *Workflow) tryLock(key string) bool {
	now := w.clock.Now()
	ceiling := w.config().LockTimeout

	w.lmu.Lock()
	defer w.lmu.Unlock()
	if at, held := w.locks[key]; held && now.Sub(at) < ceiling {
		return false
	}
	w.locks[key] = now
	return true
}

func (w *Workflow) unlock(key string) {
	w.lmu.Lock()
	delete(w.locks, key)
	w.lmu.Unlock()
}

// beginHold stamps the post-publish eligibility time for key and refreshes
// the lock acquisition time: the hold may exceed the lock staleness
// ceiling, and an overlapping tick must not steal the lock mid-hold and
// correct inside the window.
func (w *Workflow) beginHold(key string, d time.Duration) {
	if d <= 0 {
		return
	}
	now := w.clock.Now()
	w.lmu.Lock()
	defer w.lmu.Unlock()
	for k, until := range w.holds {
		if !now.Before(until) {
			delete(w.holds, k)
		}
	}
	w.holds[key] = now.Add(d)
	w.locks[key] = now
}

// holdActive reports whether key is still inside its post-publish hold.
func (w *Workflow) holdActive(key string) bool {
	now := w.clock.Now()
	w.lmu.Lock()
	defer w.lmu.Unlock()
	until, ok := w.holds[key]
	if !ok {
		return false
	}
	if !now.Before(until) {
		delete(w.holds, key)
		return false
	}
	return true
}

// sleep waits for d, honoring cancellation. Reports whether the full wait
// elapsed.
func (w *Workflow) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
