// Package poller is the REST fallback/refresh path: it fetches the current
// game snapshot on a fixed interval and hands it to the same consumer as the
// realtime channel.
package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"spadetable/internal/api"
	"spadetable/internal/game"
)

// DefaultInterval matches the 2-second refresh the table UI was built
// around.
const DefaultInterval = 2 * time.Second

type Poller struct {
	api *api.Client
}

func New(apiClient *api.Client) *Poller {
	return &Poller{api: apiClient}
}

// Poll issues one snapshot request. A table with no active game yields
// (nil, nil). api.ErrAuthRequired passes through untouched so the caller
// can route to sign-in instead of retrying.
func (p *Poller) Poll(ctx context.Context, tableID int64) (*game.GameSnapshot, error) {
	return p.api.GetGameStatus(ctx, tableID)
}

// Runner owns the repeating schedule around a Poller. Ticks that land while
// a poll is still in flight are skipped: there is never more than one
// outstanding poll per runner.
type Runner struct {
	poller   *Poller
	interval time.Duration

	// onSnapshot receives the poll result along with the time the request
	// was issued. Consumers use that time, not arrival time, to order poll
	// data against channel events: a response that raced a newer channel
	// update must lose even though it arrived later.
	onSnapshot func(snap *game.GameSnapshot, requestedAt time.Time)
	onError    func(error)

	inFlight atomic.Bool
}

func NewRunner(p *Poller, interval time.Duration, onSnapshot func(*game.GameSnapshot, time.Time), onError func(error)) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{poller: p, interval: interval, onSnapshot: onSnapshot, onError: onError}
}

// Run polls immediately, then on every tick until ctx is cancelled or the
// backend demands re-authentication. It blocks; run it on its own
// goroutine.
func (r *Runner) Run(ctx context.Context, tableID int64) {
	r.tick(ctx, tableID)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stop := r.tick(ctx, tableID); stop {
				return
			}
		}
	}
}

func (r *Runner) tick(ctx context.Context, tableID int64) (stop bool) {
	if !r.inFlight.CompareAndSwap(false, true) {
		log.Debug().Int64("table", tableID).Msg("poll still in flight, tick skipped")
		return false
	}
	defer r.inFlight.Store(false)

	requestedAt := time.Now()
	snap, err := r.poller.Poll(ctx, tableID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		if r.onError != nil {
			r.onError(err)
		}
		// A 401 is terminal for this runner: retrying with a cleared
		// credential is a guaranteed loop.
		return errors.Is(err, api.ErrAuthRequired)
	}
	if r.onSnapshot != nil {
		r.onSnapshot(snap, requestedAt)
	}
	return false
}
