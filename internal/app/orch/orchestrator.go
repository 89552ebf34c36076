// Package orch binds inbound session events to the room coordinator, the
// connection tracker and the quality classifier, and relays opaque
// signaling payloads between peers.
package orch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/app"
	"github.com/dkeye/signalroom/internal/app/connstate"
	"github.com/dkeye/signalroom/internal/app/quality"
	"github.com/dkeye/signalroom/internal/app/rooms"
	"github.com/dkeye/signalroom/internal/core"
	"github.com/dkeye/signalroom/internal/domain"
)

type Deps struct {
	Registry   *app.Registry
	Rooms      *rooms.Coordinator
	Conns      *connstate.Tracker
	Quality    *quality.Classifier
	Authorizer core.SessionAuthorizer
	Policy     app.Policy
	Client     domain.ClientConfig
}

type Orchestrator struct {
	Registry   *app.Registry
	Rooms      *rooms.Coordinator
	Conns      *connstate.Tracker
	Quality    *quality.Classifier
	Authorizer core.SessionAuthorizer
	Policy     app.Policy
	Client     domain.ClientConfig
}

// New wires the orchestrator and subscribes it to room and tracker events.
func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		Registry:   d.Registry,
		Rooms:      d.Rooms,
		Conns:      d.Conns,
		Quality:    d.Quality,
		Authorizer: d.Authorizer,
		Policy:     d.Policy,
		Client:     d.Client,
	}
	if o.Authorizer == nil {
		o.Authorizer = core.AllowAll{}
	}
	if o.Policy == nil {
		o.Policy = app.SimplePolicy{}
	}
	o.Rooms.Subscribe(o.onRoomEvent)
	o.Conns.Subscribe(o.onConnEvent)
	return o
}

// Connect registers a verified user behind a fresh transport session.
func (o *Orchestrator) Connect(sid domain.SessionID, user domain.User, conn core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.Bind(sid, user, conn, cancel)
}

// Disconnect removes the session from every room it occupies and drops its
// connection state. Safe for sessions that never joined anything.
func (o *Orchestrator) Disconnect(ctx context.Context, sid domain.SessionID) {
	for _, roomID := range o.Registry.RoomsOf(sid) {
		if err := o.Rooms.RemoveParticipant(ctx, roomID, sid); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("remove participant on disconnect")
		}
		o.Registry.RemoveRoom(sid, roomID)
	}
	o.Conns.RemoveState(sid)
	o.Registry.Unbind(sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("session disconnected")
}

func (o *Orchestrator) send(sid domain.SessionID, v any) bool {
	s, ok := o.Registry.Get(sid)
	if !ok {
		return false
	}
	return o.sendTo(sid, s.Conn, v)
}

func (o *Orchestrator) sendTo(sid domain.SessionID, conn core.SignalConnection, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("marshal outbound")
		return false
	}
	err = conn.TrySend(b)
	switch {
	case err == nil:
		return true
	case errors.Is(err, core.ErrBackpressure):
		o.onBackpressure(sid)
	default:
		log.Debug().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("send failed")
	}
	return false
}

func (o *Orchestrator) onBackpressure(sid domain.SessionID) {
	switch o.Policy.OnBackPressure(sid) {
	case app.KickMember:
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("outbound queue full, kicking session")
		o.Registry.Cancel(sid)
	case app.DropFrame, app.NoAction:
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Msg("outbound queue full, message dropped")
	}
}

// broadcast sends v to every session in roomID except skip.
func (o *Orchestrator) broadcast(roomID domain.RoomID, skip domain.SessionID, v any) int {
	n := 0
	for _, m := range o.Registry.MembersOfRoom(roomID) {
		if m.SID == skip {
			continue
		}
		if o.sendTo(m.SID, m.Conn, v) {
			n++
		}
	}
	return n
}

func (o *Orchestrator) sendError(sid domain.SessionID, code, msg string) {
	o.send(sid, ErrorMsg{Type: TypeError, Code: code, Message: msg})
}

// SendError lets transport adapters report their own failures (bad JSON,
// rate limiting) in the same shape.
func (o *Orchestrator) SendError(sid domain.SessionID, code, msg string) {
	o.sendError(sid, code, msg)
}

// fail maps err to an error event. Domain errors are expected outcomes;
// anything else is logged as an infrastructure failure.
func (o *Orchestrator) fail(sid domain.SessionID, roomID domain.RoomID, op string, err error) {
	code := CodeInternal
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		code = CodeRoomExists
	case errors.Is(err, domain.ErrNotFound):
		code = CodeRoomNotFound
	case errors.Is(err, domain.ErrRoomFull):
		code = CodeRoomFull
	case errors.Is(err, domain.ErrAccessDenied):
		code = CodeAccessDenied
	case errors.Is(err, domain.ErrInvalidRoomID), errors.Is(err, domain.ErrInvalidSettings):
		code = CodeBadPayload
	}

	if code == CodeInternal {
		log.Error().Err(err).Str("module", "orch").Str("op", op).Str("sid", string(sid)).Str("room", string(roomID)).Msg("operation failed")
		o.sendError(sid, code, "failed to "+op)
		return
	}
	log.Info().Err(err).Str("module", "orch").Str("op", op).Str("sid", string(sid)).Str("room", string(roomID)).Str("code", code).Msg("rejected")
	o.sendError(sid, code, err.Error())
}
