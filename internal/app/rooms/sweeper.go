package rooms

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/dkeye/signalroom/internal/domain"
)

const (
	DefaultCleanupInterval = time.Minute
	sweepWorkers           = 8
)

// CleanupInactiveRooms closes every room idle for longer than its timeout.
// Rooms are swept independently; a slow close only delays its own room.
// It returns how many rooms were closed.
func (c *Coordinator) CleanupInactiveRooms(ctx context.Context) int {
	var closed atomic.Int32
	p := pool.New().WithMaxGoroutines(sweepWorkers)
	for _, id := range c.ids() {
		if ctx.Err() != nil {
			break
		}
		p.Go(func() {
			ok, err := c.closeIfIdle(id)
			if err != nil {
				log.Error().Err(err).Str("module", "app.rooms").Str("room", string(id)).Msg("idle sweep failed")
				return
			}
			if ok {
				closed.Add(1)
			}
		})
	}
	p.Wait()
	if n := closed.Load(); n > 0 {
		log.Info().Str("module", "app.rooms").Int32("closed", n).Msg("idle sweep")
	}
	return int(closed.Load())
}

// closeIfIdle re-checks idleness under the room's key; the room may have
// seen activity or been closed since the sweep listed it. A room whose key
// is held right now is in use and is left for the next sweep.
func (c *Coordinator) closeIfIdle(id domain.RoomID) (bool, error) {
	closed := false
	locked, err := c.tryWithRoomLock(id, func() ([]Event, error) {
		r := c.get(id)
		if r == nil {
			return nil, nil
		}
		if c.now().Sub(r.lastActivity) <= r.settings.Timeout {
			return nil, nil
		}
		closed = true
		return c.closeLocked(r, "idle"), nil
	})
	if !locked {
		log.Debug().Str("module", "app.rooms").Str("room", string(id)).Msg("room busy, sweep skipped")
	}
	return closed, err
}

// Run sweeps idle rooms every interval until ctx is done.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	log.Info().Str("module", "app.rooms").Dur("interval", interval).Msg("idle sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.rooms").Msg("idle sweeper stopped")
			return
		case <-t.C:
			c.CleanupInactiveRooms(ctx)
		}
	}
}

// Shutdown closes every room, notifying remaining participants.
func (c *Coordinator) Shutdown(ctx context.Context) {
	for _, id := range c.ids() {
		if err := c.CloseRoom(ctx, id); err != nil {
			log.Error().Err(err).Str("module", "app.rooms").Str("room", string(id)).Msg("close on shutdown")
		}
	}
}
