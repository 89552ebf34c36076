package orch

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/domain"
)

// Relay forwards an opaque signaling payload to target only. Both sessions
// must share a room.
func (o *Orchestrator) Relay(sid, target domain.SessionID, payload json.RawMessage) {
	if target == "" || len(payload) == 0 {
		o.sendError(sid, CodeBadPayload, "signal needs targetId and signal")
		return
	}
	dst, ok := o.Registry.Get(target)
	if !ok {
		o.sendError(sid, CodePeerNotFound, "target is not connected")
		return
	}
	if !o.Registry.SharesRoom(sid, target) {
		o.sendError(sid, CodeNotInRoom, "target is not in any of your rooms")
		return
	}
	sent := o.sendTo(target, dst.Conn, SignalMsg{Type: TypeSignal, Signal: payload, From: sid})
	log.Debug().Str("module", "orch").Str("from", string(sid)).Str("to", string(target)).Bool("sent", sent).Msg("signal relayed")
}

// NetworkQuality classifies a stats snapshot and answers the reporter only.
func (o *Orchestrator) NetworkQuality(sid domain.SessionID, stats json.RawMessage) {
	tier := o.Quality.DetermineNetworkQuality(stats)
	o.send(sid, QualityMsg{Type: TypeQualityProfile, Quality: tier, Profile: o.Quality.Profile(tier)})
}
