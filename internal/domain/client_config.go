package domain

import "github.com/pion/webrtc/v4"

// ClientConfig is the effective configuration sent to a peer on join.
type ClientConfig struct {
	ICEServers       []webrtc.ICEServer `json:"iceServers"`
	MediaConstraints QualityProfile     `json:"mediaConstraints"`
}
