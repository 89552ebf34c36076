// Package connstate keeps a per-peer connection state machine with a
// bounded automatic reconnect cycle.
package connstate

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/domain"
)

const (
	MaxReconnectAttempts  = 3
	DefaultReconnectDelay = 5 * time.Second
)

type EventKind string

const (
	StateChange      EventKind = "state-change"
	ReconnectAttempt EventKind = "reconnect-attempt"
	ReconnectReady   EventKind = "reconnect-ready"
	StateRemoved     EventKind = "state-removed"
)

type Event struct {
	Kind        EventKind
	PeerID      domain.SessionID
	State       domain.ConnectionState
	Attempt     int
	MaxAttempts int
}

type Listener func(Event)

// Update is a partial state; nil fields keep their current value.
type Update struct {
	Status            *webrtc.PeerConnectionState
	ICEState          *webrtc.ICEConnectionState
	SignalingState    *webrtc.SignalingState
	LastError         error
	ReconnectAttempts *int
}

type entry struct {
	state domain.ConnectionState
	gen   uint64
	timer *time.Timer
}

// Tracker serializes all updates through one mutex, so concurrent updates
// to the same peer are never lost. Listeners run after the mutex is released.
type Tracker struct {
	mu      sync.Mutex
	states  map[domain.SessionID]*entry
	nextGen uint64

	delay time.Duration
	now   func() time.Time

	lmu       sync.RWMutex
	listeners []Listener
}

type Option func(*Tracker)

func WithReconnectDelay(d time.Duration) Option {
	return func(t *Tracker) { t.delay = d }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		states: make(map[domain.SessionID]*entry),
		delay:  DefaultReconnectDelay,
		now:    time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tracker) Subscribe(l Listener) {
	t.lmu.Lock()
	defer t.lmu.Unlock()
	t.listeners = append(t.listeners, l)
}

func (t *Tracker) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	t.lmu.RLock()
	ls := t.listeners
	t.lmu.RUnlock()
	for _, e := range events {
		for _, l := range ls {
			l(e)
		}
	}
}

// newEntryLocked must be called with t.mu held.
func (t *Tracker) newEntryLocked() *entry {
	t.nextGen++
	return &entry{
		state: domain.ConnectionState{
			Status:      webrtc.PeerConnectionStateNew,
			LastUpdated: t.now(),
		},
		gen: t.nextGen,
	}
}

// InitializeState resets the peer to "new" with zero attempts. A pending
// reconnect timer from a previous cycle will no longer fire reconnect-ready.
func (t *Tracker) InitializeState(peer domain.SessionID) {
	t.mu.Lock()
	if old, ok := t.states[peer]; ok && old.timer != nil {
		old.timer.Stop()
	}
	t.states[peer] = t.newEntryLocked()
	t.mu.Unlock()
	log.Debug().Str("module", "app.connstate").Str("peer", string(peer)).Msg("state initialized")
}

// UpdateState merges u into the peer's state, creating a default one if
// absent. Reaching "failed" with attempts left starts a reconnect cycle:
// the counter is bumped, reconnect-attempt is emitted, and reconnect-ready
// follows after the reconnect delay.
func (t *Tracker) UpdateState(peer domain.SessionID, u Update) domain.ConnectionState {
	t.mu.Lock()
	e, ok := t.states[peer]
	if !ok {
		e = t.newEntryLocked()
		t.states[peer] = e
	}

	s := e.state
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.ICEState != nil {
		s.ICEState = *u.ICEState
	}
	if u.SignalingState != nil {
		s.SignalingState = *u.SignalingState
	}
	if u.LastError != nil {
		s.LastError = u.LastError
	}
	if u.ReconnectAttempts != nil {
		s.ReconnectAttempts = min(max(*u.ReconnectAttempts, 0), MaxReconnectAttempts)
	}
	s.LastUpdated = t.now()
	e.state = s

	events := []Event{{Kind: StateChange, PeerID: peer, State: s}}

	if s.Status == webrtc.PeerConnectionStateFailed && s.ReconnectAttempts < MaxReconnectAttempts {
		s.ReconnectAttempts++
		s.LastUpdated = t.now()
		e.state = s
		events = append(events,
			Event{Kind: StateChange, PeerID: peer, State: s},
			Event{Kind: ReconnectAttempt, PeerID: peer, State: s, Attempt: s.ReconnectAttempts, MaxAttempts: MaxReconnectAttempts},
		)
		if e.timer != nil {
			e.timer.Stop()
		}
		gen := e.gen
		e.timer = time.AfterFunc(t.delay, func() { t.fireReady(peer, gen) })

		log.Warn().Str("module", "app.connstate").Str("peer", string(peer)).
			Int("attempt", s.ReconnectAttempts).Int("max", MaxReconnectAttempts).Msg("connection failed, scheduling reconnect")
	}
	t.mu.Unlock()

	log.Debug().Str("module", "app.connstate").Str("peer", string(peer)).Str("status", s.Status.String()).
		Str("ice", s.ICEState.String()).Str("signaling", s.SignalingState.String()).Msg("state updated")
	t.publish(events)
	return s
}

// fireReady re-checks the peer after the delay: it may have been removed,
// re-initialized or recovered in the meantime.
func (t *Tracker) fireReady(peer domain.SessionID, gen uint64) {
	t.mu.Lock()
	e, ok := t.states[peer]
	if !ok || e.gen != gen || e.state.Status != webrtc.PeerConnectionStateFailed {
		t.mu.Unlock()
		return
	}
	e.timer = nil
	s := e.state
	t.mu.Unlock()

	log.Info().Str("module", "app.connstate").Str("peer", string(peer)).Int("attempt", s.ReconnectAttempts).Msg("reconnect ready")
	t.publish([]Event{{Kind: ReconnectReady, PeerID: peer, State: s, Attempt: s.ReconnectAttempts, MaxAttempts: MaxReconnectAttempts}})
}

func (t *Tracker) GetState(peer domain.SessionID) (domain.ConnectionState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.states[peer]
	if !ok {
		return domain.ConnectionState{}, false
	}
	return e.state, true
}

func (t *Tracker) RemoveState(peer domain.SessionID) {
	t.mu.Lock()
	e, ok := t.states[peer]
	if ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(t.states, peer)
	}
	t.mu.Unlock()
	if ok {
		t.publish([]Event{{Kind: StateRemoved, PeerID: peer}})
	}
}

// IsStable is stricter than a "connected" status: ICE must be connected
// and signaling must be stable as well.
func (t *Tracker) IsStable(peer domain.SessionID) bool {
	s, ok := t.GetState(peer)
	return ok &&
		s.Status == webrtc.PeerConnectionStateConnected &&
		s.ICEState == webrtc.ICEConnectionStateConnected &&
		s.SignalingState == webrtc.SignalingStateStable
}

func (t *Tracker) ShouldAttemptReconnect(peer domain.SessionID) bool {
	s, ok := t.GetState(peer)
	return ok && s.Status == webrtc.PeerConnectionStateFailed && s.ReconnectAttempts < MaxReconnectAttempts
}

// Close stops every pending reconnect timer.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.states {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
}
