package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/app/connstate"
	"github.com/dkeye/signalroom/internal/app/rooms"
)

// onRoomEvent runs after the room lock is released.
func (o *Orchestrator) onRoomEvent(e rooms.Event) {
	switch e.Kind {
	case rooms.ParticipantJoined:
		p := e.Participant
		o.broadcast(e.RoomID, p.SessionID, PeerMsg{Type: TypeUserJoined, RoomID: e.RoomID, UserID: p.UserID, SessionID: p.SessionID, Role: p.Role})
	case rooms.ParticipantLeft:
		p := e.Participant
		o.Registry.RemoveRoom(p.SessionID, e.RoomID)
		o.broadcast(e.RoomID, p.SessionID, PeerMsg{Type: TypeUserLeft, RoomID: e.RoomID, UserID: p.UserID, SessionID: p.SessionID})
	case rooms.ParticipantStateChanged:
		p := e.Participant
		o.broadcast(e.RoomID, p.SessionID, PeerMsg{Type: TypeParticipantStateChanged, RoomID: e.RoomID, UserID: p.UserID, SessionID: p.SessionID, State: p.ConnectionState})
	case rooms.ParticipantRemoved:
		p := e.Participant
		o.Registry.RemoveRoom(p.SessionID, e.RoomID)
		o.send(p.SessionID, RoomMsg{Type: TypeRoomClosed, RoomID: e.RoomID})
	case rooms.RoomMetadataUpdated:
		o.broadcast(e.RoomID, "", RoomMsg{Type: TypeRoomMetadataUpdated, RoomID: e.RoomID, Metadata: e.Metadata})
	case rooms.RoomCreated, rooms.RoomClosed:
		log.Debug().Str("module", "orch").Str("room", string(e.RoomID)).Str("event", string(e.Kind)).Msg("room lifecycle")
	}
}

func (o *Orchestrator) onConnEvent(e connstate.Event) {
	switch e.Kind {
	case connstate.StateChange:
		o.send(e.PeerID, ConnectionStateMsg{Type: TypeConnectionStateChanged, State: e.State.DTO(), Stable: o.Conns.IsStable(e.PeerID)})
	case connstate.ReconnectAttempt:
		o.send(e.PeerID, ReconnectMsg{Type: TypeReconnecting, Attempt: e.Attempt, MaxAttempts: e.MaxAttempts})
	case connstate.ReconnectReady:
		o.send(e.PeerID, ReconnectMsg{Type: TypeReconnectReady, Attempt: e.Attempt, MaxAttempts: e.MaxAttempts})
	case connstate.StateRemoved:
	}
}
