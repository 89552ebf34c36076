package signal

import (
	"context"

	"github.com/dkeye/signalroom/internal/app/orch"
	"github.com/dkeye/signalroom/internal/domain"
)

// handleRelay never parses the signal body; sender identity comes from
// the session, not from the payload.
func (ctl *SignalWSController) handleRelay(sid domain.SessionID, data []byte) {
	var p relayPayload
	if err := decode(data, &p); err != nil {
		ctl.badPayload(sid, err.Error())
		return
	}
	ctl.Orch.Relay(sid, domain.SessionID(p.TargetID), p.Signal)
}

func (ctl *SignalWSController) handleConnectionState(ctx context.Context, sid domain.SessionID, data []byte) {
	var p connectionStatePayload
	if err := decode(data, &p); err != nil {
		ctl.badPayload(sid, err.Error())
		return
	}
	ctl.Orch.UpdateConnectionState(ctx, sid, orch.ConnectionStateRequest{
		RoomID:         domain.RoomID(p.RoomID),
		State:          p.State,
		ICEState:       p.ICEState,
		SignalingState: p.SignalingState,
	})
}

// handleNetworkQuality tolerates any stats shape; the classifier falls
// back to the medium tier on garbage.
func (ctl *SignalWSController) handleNetworkQuality(sid domain.SessionID, data []byte) {
	var p qualityPayload
	if err := decode(data, &p); err != nil {
		ctl.badPayload(sid, err.Error())
		return
	}
	ctl.Orch.NetworkQuality(sid, p.Stats)
}
