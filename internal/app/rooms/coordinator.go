// Package rooms owns room lifecycle, membership, settings and metadata.
//
// Every mutation of a room runs under that room's key in a keylock.Mutex,
// so operations on one room are totally ordered while distinct rooms
// proceed in parallel. Events are collected inside the critical section
// and published only after the lock is released.
package rooms

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/app/keylock"
	"github.com/dkeye/signalroom/internal/domain"
)

type room struct {
	id           domain.RoomID
	participants map[domain.SessionID]*domain.Participant
	createdAt    time.Time
	lastActivity time.Time
	settings     domain.RoomSettings
	metadata     map[string]any
}

func (r *room) snapshot() domain.Room {
	ps := make([]domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		ps = append(ps, *p)
	}
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].JoinedAt.Equal(ps[j].JoinedAt) {
			return ps[i].SessionID < ps[j].SessionID
		}
		return ps[i].JoinedAt.Before(ps[j].JoinedAt)
	})
	return domain.Room{
		ID:           r.id,
		Participants: ps,
		CreatedAt:    r.createdAt,
		LastActivity: r.lastActivity,
		Settings:     r.settings,
		Metadata:     maps.Clone(r.metadata),
	}
}

type Coordinator struct {
	locks    *keylock.Mutex
	defaults domain.RoomSettings
	now      func() time.Time

	// mu guards the table itself; room fields are guarded by the room's key.
	mu    sync.RWMutex
	rooms map[domain.RoomID]*room

	events bus
}

type Option func(*Coordinator)

// WithClock replaces time.Now, mainly for idle-sweep tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(defaults domain.RoomSettings, opts ...Option) *Coordinator {
	c := &Coordinator{
		locks:    keylock.New(),
		defaults: defaults,
		now:      time.Now,
		rooms:    make(map[domain.RoomID]*room),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Coordinator) Defaults() domain.RoomSettings { return c.defaults }

// Subscribe registers l for every event emitted from now on.
func (c *Coordinator) Subscribe(l Listener) { c.events.subscribe(l) }

func lockKey(id domain.RoomID) string { return "room:" + string(id) }

// withRoomLock runs fn under the room's key and publishes what fn returns
// once the key is released.
func (c *Coordinator) withRoomLock(ctx context.Context, id domain.RoomID, fn func() ([]Event, error)) error {
	release, err := c.locks.Acquire(ctx, lockKey(id))
	if err != nil {
		return fmt.Errorf("acquire lock for room %s: %w", id, err)
	}
	events, err := func() ([]Event, error) {
		defer release()
		return fn()
	}()
	c.events.publish(events)
	return err
}

// tryWithRoomLock is withRoomLock without waiting: it reports false and
// skips fn when the room's key is held or contended.
func (c *Coordinator) tryWithRoomLock(id domain.RoomID, fn func() ([]Event, error)) (bool, error) {
	release, ok := c.locks.TryAcquire(lockKey(id))
	if !ok {
		return false, nil
	}
	events, err := func() ([]Event, error) {
		defer release()
		return fn()
	}()
	c.events.publish(events)
	return true, err
}

func (c *Coordinator) get(id domain.RoomID) *room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[id]
}

func (c *Coordinator) CreateRoom(ctx context.Context, id domain.RoomID, override *domain.SettingsOverride) (domain.Room, error) {
	if err := domain.ValidateRoomID(id); err != nil {
		return domain.Room{}, err
	}
	settings, err := override.Merge(c.defaults)
	if err != nil {
		return domain.Room{}, err
	}

	var out domain.Room
	err = c.withRoomLock(ctx, id, func() ([]Event, error) {
		if c.get(id) != nil {
			return nil, fmt.Errorf("room %s: %w", id, domain.ErrAlreadyExists)
		}
		now := c.now()
		r := &room{
			id:           id,
			participants: make(map[domain.SessionID]*domain.Participant),
			createdAt:    now,
			lastActivity: now,
			settings:     settings,
			metadata:     make(map[string]any),
		}
		c.mu.Lock()
		c.rooms[id] = r
		c.mu.Unlock()

		out = r.snapshot()
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Int("max_participants", settings.MaxParticipants).Msg("room created")
		return []Event{{Kind: RoomCreated, RoomID: id, At: now}}, nil
	})
	return out, err
}

// AddParticipant inserts p. A session already present in the room is
// refreshed in place and does not count against capacity twice.
func (c *Coordinator) AddParticipant(ctx context.Context, id domain.RoomID, p domain.Participant) error {
	return c.withRoomLock(ctx, id, func() ([]Event, error) {
		r := c.get(id)
		if r == nil {
			return nil, fmt.Errorf("room %s: %w", id, domain.ErrNotFound)
		}
		now := c.now()
		if cur, ok := r.participants[p.SessionID]; ok {
			cur.UserID = p.UserID
			cur.Role = p.Role
			r.lastActivity = now
			log.Debug().Str("module", "app.rooms").Str("room", string(id)).Str("sid", string(p.SessionID)).Msg("participant refreshed")
			return nil, nil
		}
		if len(r.participants) >= r.settings.MaxParticipants {
			return nil, fmt.Errorf("room %s: %w", id, domain.ErrRoomFull)
		}
		if p.JoinedAt.IsZero() {
			p.JoinedAt = now
		}
		stored := p
		r.participants[p.SessionID] = &stored
		r.lastActivity = now

		log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("sid", string(p.SessionID)).
			Str("user", string(p.UserID)).Str("role", string(p.Role)).Int("count", len(r.participants)).Msg("participant joined")
		return []Event{{Kind: ParticipantJoined, RoomID: id, Participant: &p, At: now}}, nil
	})
}

// RemoveParticipant is a no-op for unknown rooms or sessions. Draining the
// last participant closes the room inside the same critical section.
func (c *Coordinator) RemoveParticipant(ctx context.Context, id domain.RoomID, sid domain.SessionID) error {
	return c.withRoomLock(ctx, id, func() ([]Event, error) {
		r := c.get(id)
		if r == nil {
			return nil, nil
		}
		p, ok := r.participants[sid]
		if !ok {
			return nil, nil
		}
		delete(r.participants, sid)
		now := c.now()
		r.lastActivity = now

		left := *p
		events := []Event{{Kind: ParticipantLeft, RoomID: id, Participant: &left, At: now}}
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("sid", string(sid)).
			Str("user", string(p.UserID)).Int("count", len(r.participants)).Msg("participant left")

		if len(r.participants) == 0 {
			events = append(events, c.closeLocked(r, "empty")...)
		}
		return events, nil
	})
}

func (c *Coordinator) UpdateParticipantState(ctx context.Context, id domain.RoomID, sid domain.SessionID, label string) error {
	return c.withRoomLock(ctx, id, func() ([]Event, error) {
		r := c.get(id)
		if r == nil {
			return nil, nil
		}
		p, ok := r.participants[sid]
		if !ok {
			return nil, nil
		}
		p.ConnectionState = label
		changed := *p
		return []Event{{Kind: ParticipantStateChanged, RoomID: id, Participant: &changed, At: c.now()}}, nil
	})
}

// CloseRoom removes the room and every remaining participant. No-op if absent.
func (c *Coordinator) CloseRoom(ctx context.Context, id domain.RoomID) error {
	return c.withRoomLock(ctx, id, func() ([]Event, error) {
		r := c.get(id)
		if r == nil {
			return nil, nil
		}
		return c.closeLocked(r, "explicit"), nil
	})
}

// closeLocked must run under the room's key.
func (c *Coordinator) closeLocked(r *room, reason string) []Event {
	now := c.now()
	snap := r.snapshot()
	events := make([]Event, 0, len(snap.Participants)+1)
	for i := range snap.Participants {
		events = append(events, Event{Kind: ParticipantRemoved, RoomID: r.id, Participant: &snap.Participants[i], At: now})
	}

	c.mu.Lock()
	delete(c.rooms, r.id)
	c.mu.Unlock()

	log.Info().Str("module", "app.rooms").Str("room", string(r.id)).Str("reason", reason).Int("removed", len(snap.Participants)).Msg("room closed")
	return append(events, Event{Kind: RoomClosed, RoomID: r.id, At: now})
}

// UpdateRoomMetadata shallow-merges patch into the room metadata. No-op if absent.
func (c *Coordinator) UpdateRoomMetadata(ctx context.Context, id domain.RoomID, patch map[string]any) error {
	return c.withRoomLock(ctx, id, func() ([]Event, error) {
		r := c.get(id)
		if r == nil {
			return nil, nil
		}
		maps.Copy(r.metadata, patch)
		now := c.now()
		r.lastActivity = now
		return []Event{{Kind: RoomMetadataUpdated, RoomID: id, Metadata: maps.Clone(r.metadata), At: now}}, nil
	})
}

// GetRoomInfo returns a snapshot taken under the room's key.
func (c *Coordinator) GetRoomInfo(ctx context.Context, id domain.RoomID) (domain.Room, bool, error) {
	var (
		out   domain.Room
		found bool
	)
	err := c.withRoomLock(ctx, id, func() ([]Event, error) {
		if r := c.get(id); r != nil {
			out, found = r.snapshot(), true
		}
		return nil, nil
	})
	return out, found, err
}

type RoomSummary struct {
	ID           domain.RoomID `json:"id"`
	Participants int           `json:"participants"`
	MaxSize      int           `json:"maxParticipants"`
	LastActivity time.Time     `json:"lastActivity"`
}

// List summarizes every room still present when its turn comes.
func (c *Coordinator) List(ctx context.Context) ([]RoomSummary, error) {
	out := make([]RoomSummary, 0)
	for _, id := range c.ids() {
		info, ok, err := c.GetRoomInfo(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, RoomSummary{
			ID:           info.ID,
			Participants: len(info.Participants),
			MaxSize:      info.Settings.MaxParticipants,
			LastActivity: info.LastActivity,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Coordinator) ids() []domain.RoomID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]domain.RoomID, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

func (c *Coordinator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms)
}
