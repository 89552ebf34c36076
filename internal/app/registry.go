package app

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/core"
	"github.com/dkeye/signalroom/internal/domain"
)

type sessionEntry struct {
	User   domain.User
	Conn   core.SignalConnection
	Rooms  map[domain.RoomID]struct{}
	Cancel context.CancelFunc
}

// Registry is the per-connection bookkeeping: who is behind a transport
// session and which rooms that session currently occupies.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*sessionEntry),
	}
}

func (r *Registry) Bind(sid domain.SessionID, user domain.User, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{
		User:   user,
		Conn:   conn,
		Rooms:  make(map[domain.RoomID]struct{}),
		Cancel: cancel,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("bound session")
}

// Unbind forgets sid and returns the rooms it still occupied.
func (r *Registry) Unbind(sid domain.SessionID) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return sortedRooms(e.Rooms)
}

type SessionSnap struct {
	SID  domain.SessionID
	User domain.User
	Conn core.SignalConnection
}

func (r *Registry) Get(sid domain.SessionID) (SessionSnap, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return SessionSnap{}, false
	}
	return SessionSnap{SID: sid, User: e.User, Conn: e.Conn}, true
}

func (r *Registry) AddRoom(sid domain.SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Rooms[room] = struct{}{}
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("added room association")
	return true
}

func (r *Registry) RemoveRoom(sid domain.SessionID, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		delete(e.Rooms, room)
		log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("removed room association")
	}
}

func (r *Registry) RoomsOf(sid domain.SessionID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	return sortedRooms(e.Rooms)
}

func (r *Registry) InRoom(sid domain.SessionID, room domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	_, in := e.Rooms[room]
	return in
}

// SharesRoom reports whether a and b occupy at least one common room.
func (r *Registry) SharesRoom(a, b domain.SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ea, ok := r.sessions[a]
	if !ok {
		return false
	}
	eb, ok := r.sessions[b]
	if !ok {
		return false
	}
	for room := range ea.Rooms {
		if _, ok := eb.Rooms[room]; ok {
			return true
		}
	}
	return false
}

func (r *Registry) MembersOfRoom(room domain.RoomID) []SessionSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionSnap, 0, 4)
	for sid, e := range r.sessions {
		if _, ok := e.Rooms[room]; ok {
			out = append(out, SessionSnap{SID: sid, User: e.User, Conn: e.Conn})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SID < out[j].SID })
	return out
}

// Cancel tears down the session's transport context, if any.
func (r *Registry) Cancel(sid domain.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func sortedRooms(set map[domain.RoomID]struct{}) []domain.RoomID {
	out := make([]domain.RoomID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
