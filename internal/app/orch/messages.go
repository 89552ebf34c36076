package orch

import (
	"encoding/json"

	"github.com/dkeye/signalroom/internal/domain"
)

// Error codes carried by the "error" event.
const (
	CodeRoomExists          = "ROOM_EXISTS"
	CodeRoomNotFound        = "ROOM_NOT_FOUND"
	CodeRoomFull            = "ROOM_FULL"
	CodeAccessDenied        = "ACCESS_DENIED"
	CodeBadPayload          = "BAD_PAYLOAD"
	CodeNotInRoom           = "NOT_IN_ROOM"
	CodePeerNotFound        = "PEER_NOT_FOUND"
	CodeScreenShareDisabled = "SCREEN_SHARE_DISABLED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL"
)

// Outbound message types.
const (
	TypeError                   = "error"
	TypeRoomJoined              = "room-joined"
	TypeRoomLeft                = "room-left"
	TypeRoomClosed              = "room-closed"
	TypeRoomMetadataUpdated     = "room-metadata-updated"
	TypeUserJoined              = "user-joined"
	TypeUserLeft                = "user-left"
	TypeParticipantStateChanged = "participant-state-changed"
	TypeSignal                  = "signal"
	TypeQualityProfile          = "quality-profile"
	TypeScreenShareStarted      = "screen-share-started"
	TypeScreenShareStopped      = "screen-share-stopped"
	TypeConnectionStateChanged  = "connection-state-changed"
	TypeReconnecting            = "reconnecting"
	TypeReconnectReady          = "reconnect-ready"
	TypeReconnectExhausted      = "reconnect-exhausted"
)

type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoomJoinedMsg struct {
	Type         string               `json:"type"`
	RoomID       domain.RoomID        `json:"roomId"`
	SessionID    domain.SessionID     `json:"sessionId"`
	Config       domain.ClientConfig  `json:"config"`
	Settings     domain.RoomSettings  `json:"settings"`
	Participants []domain.Participant `json:"participants"`
}

type RoomMsg struct {
	Type     string         `json:"type"`
	RoomID   domain.RoomID  `json:"roomId"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type PeerMsg struct {
	Type      string           `json:"type"`
	RoomID    domain.RoomID    `json:"roomId"`
	UserID    domain.UserID    `json:"userId"`
	SessionID domain.SessionID `json:"sessionId,omitempty"`
	Role      domain.Role      `json:"role,omitempty"`
	State     string           `json:"state,omitempty"`
}

type SignalMsg struct {
	Type   string           `json:"type"`
	Signal json.RawMessage  `json:"signal"`
	From   domain.SessionID `json:"from"`
}

type QualityMsg struct {
	Type    string                `json:"type"`
	Quality domain.QualityTier    `json:"quality"`
	Profile domain.QualityProfile `json:"profile"`
}

type ConnectionStateMsg struct {
	Type   string                    `json:"type"`
	State  domain.ConnectionStateDTO `json:"state"`
	Stable bool                      `json:"stable"`
}

type ReconnectMsg struct {
	Type        string `json:"type"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"maxAttempts"`
}
