package domain

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// ConnectionState is the per-peer view kept by the connection tracker.
// Status uses the W3C RTCPeerConnectionState values; the sub-states are
// the ICE and signaling states reported by the peer.
type ConnectionState struct {
	Status            webrtc.PeerConnectionState
	ICEState          webrtc.ICEConnectionState
	SignalingState    webrtc.SignalingState
	LastError         error
	ReconnectAttempts int
	LastUpdated       time.Time
}

// ConnectionStateDTO is the wire form of ConnectionState.
type ConnectionStateDTO struct {
	Status             string `json:"status"`
	ICEConnectionState string `json:"iceConnectionState,omitempty"`
	SignalingState     string `json:"signalingState,omitempty"`
	LastError          string `json:"lastError,omitempty"`
	ReconnectAttempts  int    `json:"reconnectAttempts"`
	LastUpdated        int64  `json:"lastUpdated"`
}

func (s ConnectionState) DTO() ConnectionStateDTO {
	out := ConnectionStateDTO{
		Status:            s.Status.String(),
		ReconnectAttempts: s.ReconnectAttempts,
		LastUpdated:       s.LastUpdated.UnixMilli(),
	}
	if s.ICEState != webrtc.ICEConnectionStateUnknown {
		out.ICEConnectionState = s.ICEState.String()
	}
	if s.SignalingState != webrtc.SignalingStateUnknown {
		out.SignalingState = s.SignalingState.String()
	}
	if s.LastError != nil {
		out.LastError = s.LastError.Error()
	}
	return out
}

var peerStatuses = []webrtc.PeerConnectionState{
	webrtc.PeerConnectionStateNew,
	webrtc.PeerConnectionStateConnecting,
	webrtc.PeerConnectionStateConnected,
	webrtc.PeerConnectionStateDisconnected,
	webrtc.PeerConnectionStateFailed,
	webrtc.PeerConnectionStateClosed,
}

var iceStates = []webrtc.ICEConnectionState{
	webrtc.ICEConnectionStateNew,
	webrtc.ICEConnectionStateChecking,
	webrtc.ICEConnectionStateConnected,
	webrtc.ICEConnectionStateCompleted,
	webrtc.ICEConnectionStateDisconnected,
	webrtc.ICEConnectionStateFailed,
	webrtc.ICEConnectionStateClosed,
}

var signalingStates = []webrtc.SignalingState{
	webrtc.SignalingStateStable,
	webrtc.SignalingStateHaveLocalOffer,
	webrtc.SignalingStateHaveRemoteOffer,
	webrtc.SignalingStateHaveLocalPranswer,
	webrtc.SignalingStateHaveRemotePranswer,
	webrtc.SignalingStateClosed,
}

// ParseStatus maps a W3C label ("connecting", "failed", ...) to a status.
func ParseStatus(label string) (webrtc.PeerConnectionState, bool) {
	for _, s := range peerStatuses {
		if s.String() == label {
			return s, true
		}
	}
	return webrtc.PeerConnectionStateUnknown, false
}

func ParseICEState(label string) (webrtc.ICEConnectionState, bool) {
	for _, s := range iceStates {
		if s.String() == label {
			return s, true
		}
	}
	return webrtc.ICEConnectionStateUnknown, false
}

func ParseSignalingState(label string) (webrtc.SignalingState, bool) {
	for _, s := range signalingStates {
		if s.String() == label {
			return s, true
		}
	}
	return webrtc.SignalingStateUnknown, false
}
