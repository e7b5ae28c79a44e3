// Package poller drives one polling cycle: live games in, goals resolved,
// workflows dispatched, stale state swept.
package poller

import (
	"context"
	"errors"
	"fmt"

	"goalbot/internal/nhl"
	"goalbot/internal/notifier"
	"goalbot/internal/tracker"
	logx "goalbot/pkg/logx"
)

// Provider is the schedule/play-by-play source.
type Provider interface {
	LiveGames(ctx context.Context) ([]int, error)
	PlayByPlay(ctx context.Context, gameID int) (*nhl.GameFeed, error)
}

type Poller struct {
	provider Provider
	store    *tracker.Store
	resolver *tracker.Resolver
	workflow *notifier.Workflow
	log      logx.Logger
}

func New(provider Provider, store *tracker.Store, resolver *tracker.Resolver, workflow *notifier.Workflow, log logx.Logger) *Poller {
	return &Poller{
		provider: provider,
		store:    store,
		resolver: resolver,
		workflow: workflow,
		log:      log,
	}
}

// Cycle runs one full pass. Errors local to a game or a play are absorbed
// here; only a failed schedule fetch (the whole provider unreachable)
// propagates, so the caller can count consecutive upstream failures.
func (p *Poller) Cycle(ctx context.Context) error {
	p.store.Sweep()

	games, err := p.provider.LiveGames(ctx)
	if err != nil {
		return fmt.Errorf("poll cycle: %w", err)
	}
	if len(games) == 0 {
		p.log.Debug("no live games")
		return nil
	}

	for _, gameID := range games {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.processGame(ctx, gameID)
	}
	return nil
}

func (p *Poller) processGame(ctx context.Context, gameID int) {
	feed, err := p.provider.PlayByPlay(ctx, gameID)
	if err != nil {
		// One bad game never aborts the cycle; other games continue.
		p.log.Warn("skipping game this cycle", logx.Int("game", gameID), logx.Err(err))
		return
	}

	for _, play := range feed.Plays {
		if !play.IsGoal() {
			continue
		}
		goal, err := nhl.GoalFromPlay(play, feed)
		if err != nil {
			if errors.Is(err, nhl.ErrMalformedPlay) {
				p.log.Warn("dropping malformed scoring play",
					logx.Int("game", gameID), logx.Int("event", play.EventID))
				continue
			}
			p.log.Warn("dropping scoring play", logx.Int("game", gameID), logx.Err(err))
			continue
		}

		res, key := p.resolver.Resolve(goal)
		switch res {
		case tracker.ResolutionNew:
			p.workflow.AnnounceNew(ctx, key, goal)
		case tracker.ResolutionUpdate:
			p.workflow.Correct(ctx, key, goal)
		case tracker.ResolutionDuplicate:
			p.log.Debug("duplicate goal suppressed",
				logx.Int("game", gameID), logx.String("scorer", goal.Scorer))
		case tracker.ResolutionIgnore:
			// fully processed or stale; nothing to do
		}
	}
}
