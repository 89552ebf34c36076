package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/app/connstate"
	"github.com/dkeye/signalroom/internal/domain"
)

type JoinRequest struct {
	RoomID domain.RoomID
	UserID domain.UserID
	Role   domain.Role
}

// JoinRoom admits the session into a room, creating the room on first join.
func (o *Orchestrator) JoinRoom(ctx context.Context, sid domain.SessionID, req JoinRequest) {
	sess, ok := o.Registry.Get(sid)
	if !ok {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("join from unknown session")
		return
	}
	if err := domain.ValidateRoomID(req.RoomID); err != nil {
		o.sendError(sid, CodeBadPayload, err.Error())
		return
	}
	role := req.Role
	if role == "" {
		role = domain.RoleParticipant
	}
	if !role.Valid() {
		o.sendError(sid, CodeBadPayload, fmt.Sprintf("unknown role %q", role))
		return
	}
	if req.UserID != "" && req.UserID != sess.User.ID {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("claimed", string(req.UserID)).
			Str("user", string(sess.User.ID)).Msg("join with foreign user id")
		o.fail(sid, req.RoomID, "join room", domain.ErrAccessDenied)
		return
	}

	allowed, err := o.Authorizer.CanJoin(ctx, sess.User.ID, req.RoomID)
	if err != nil {
		o.fail(sid, req.RoomID, "join room", fmt.Errorf("authorize: %w", err))
		return
	}
	if !allowed {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("user", string(sess.User.ID)).
			Str("room", string(req.RoomID)).Msg("access denied")
		o.fail(sid, req.RoomID, "join room", domain.ErrAccessDenied)
		return
	}

	if o.Registry.InRoom(sid, req.RoomID) {
		info, found, err := o.Rooms.GetRoomInfo(ctx, req.RoomID)
		if err == nil && found {
			o.sendJoined(sid, info)
			return
		}
		// stale association: the room went away under us
		o.Registry.RemoveRoom(sid, req.RoomID)
	}

	info, err := o.admit(ctx, req.RoomID, domain.Participant{
		SessionID: sid,
		UserID:    sess.User.ID,
		Role:      role,
	})
	if err != nil {
		o.fail(sid, req.RoomID, "join room", err)
		return
	}

	o.Registry.AddRoom(sid, req.RoomID)
	o.Conns.InitializeState(sid)
	o.sendJoined(sid, info)
}

// admit looks up or creates the room and adds p. A room closed between
// creation and insertion is recreated once.
func (o *Orchestrator) admit(ctx context.Context, roomID domain.RoomID, p domain.Participant) (domain.Room, error) {
	var lastErr error
	for range 2 {
		_, found, err := o.Rooms.GetRoomInfo(ctx, roomID)
		if err != nil {
			return domain.Room{}, err
		}
		if !found {
			_, err := o.Rooms.CreateRoom(ctx, roomID, nil)
			if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
				return domain.Room{}, err
			}
		}
		err = o.Rooms.AddParticipant(ctx, roomID, p)
		if errors.Is(err, domain.ErrNotFound) {
			lastErr = err
			continue
		}
		if err != nil {
			return domain.Room{}, err
		}
		info, found, err := o.Rooms.GetRoomInfo(ctx, roomID)
		if err != nil {
			return domain.Room{}, err
		}
		if !found {
			lastErr = fmt.Errorf("room %s: %w", roomID, domain.ErrNotFound)
			continue
		}
		return info, nil
	}
	return domain.Room{}, lastErr
}

func (o *Orchestrator) sendJoined(sid domain.SessionID, info domain.Room) {
	o.send(sid, RoomJoinedMsg{
		Type:         TypeRoomJoined,
		RoomID:       info.ID,
		SessionID:    sid,
		Config:       o.Client,
		Settings:     info.Settings,
		Participants: info.Participants,
	})
}

// LeaveRoom removes the session from one room without closing the transport.
func (o *Orchestrator) LeaveRoom(ctx context.Context, sid domain.SessionID, roomID domain.RoomID) {
	if !o.Registry.InRoom(sid, roomID) {
		o.sendError(sid, CodeNotInRoom, fmt.Sprintf("not in room %s", roomID))
		return
	}
	if err := o.Rooms.RemoveParticipant(ctx, roomID, sid); err != nil {
		o.fail(sid, roomID, "leave room", err)
		return
	}
	o.Registry.RemoveRoom(sid, roomID)
	o.send(sid, RoomMsg{Type: TypeRoomLeft, RoomID: roomID})
}

// ScreenShare announces a screen share start or stop to the rest of the room.
func (o *Orchestrator) ScreenShare(ctx context.Context, sid domain.SessionID, roomID domain.RoomID, started bool) {
	sess, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	if !o.Registry.InRoom(sid, roomID) {
		o.sendError(sid, CodeNotInRoom, fmt.Sprintf("not in room %s", roomID))
		return
	}
	info, found, err := o.Rooms.GetRoomInfo(ctx, roomID)
	if err != nil {
		o.fail(sid, roomID, "share screen", err)
		return
	}
	if !found {
		o.sendError(sid, CodeNotInRoom, fmt.Sprintf("not in room %s", roomID))
		return
	}
	if !info.Settings.ScreenShareEnabled {
		o.sendError(sid, CodeScreenShareDisabled, "screen sharing is disabled in this room")
		return
	}

	typ := TypeScreenShareStopped
	if started {
		typ = TypeScreenShareStarted
	}
	n := o.broadcast(roomID, sid, PeerMsg{Type: typ, RoomID: roomID, UserID: sess.User.ID, SessionID: sid})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Str("event", typ).Int("sent_to", n).Msg("screen share")
}

type ConnectionStateRequest struct {
	RoomID         domain.RoomID
	State          string
	ICEState       string
	SignalingState string
}

// UpdateConnectionState keeps the membership-level label and the peer-level
// state machine in step. The room lock and the tracker lock are taken one
// after the other, never nested.
func (o *Orchestrator) UpdateConnectionState(ctx context.Context, sid domain.SessionID, req ConnectionStateRequest) {
	status, ok := domain.ParseStatus(req.State)
	if !ok {
		o.sendError(sid, CodeBadPayload, fmt.Sprintf("unknown connection state %q", req.State))
		return
	}
	upd := connstate.Update{Status: &status}
	if req.ICEState != "" {
		ice, ok := domain.ParseICEState(req.ICEState)
		if !ok {
			o.sendError(sid, CodeBadPayload, fmt.Sprintf("unknown ice state %q", req.ICEState))
			return
		}
		upd.ICEState = &ice
	}
	if req.SignalingState != "" {
		sig, ok := domain.ParseSignalingState(req.SignalingState)
		if !ok {
			o.sendError(sid, CodeBadPayload, fmt.Sprintf("unknown signaling state %q", req.SignalingState))
			return
		}
		upd.SignalingState = &sig
	}

	if req.RoomID != "" {
		if err := o.Rooms.UpdateParticipantState(ctx, req.RoomID, sid, req.State); err != nil {
			o.fail(sid, req.RoomID, "update connection state", err)
			return
		}
	}
	prev, _ := o.Conns.GetState(sid)
	st := o.Conns.UpdateState(sid, upd)
	if st.Status == webrtc.PeerConnectionStateFailed && st.ReconnectAttempts == prev.ReconnectAttempts && !o.Conns.ShouldAttemptReconnect(sid) {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Int("attempts", st.ReconnectAttempts).Msg("reconnect attempts exhausted")
		o.send(sid, ReconnectMsg{Type: TypeReconnectExhausted, Attempt: st.ReconnectAttempts, MaxAttempts: connstate.MaxReconnectAttempts})
	}
}
