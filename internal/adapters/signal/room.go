package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/app/orch"
	"github.com/dkeye/signalroom/internal/domain"
)

func (ctl *SignalWSController) handleJoin(ctx context.Context, sid domain.SessionID, user domain.User, data []byte) {
	var p joinPayload
	if err := decode(data, &p); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.badPayload(sid, err.Error())
		return
	}
	if l := ctl.opts.JoinLimiter; l != nil && !l.Allow(user.ID) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("join rate limited")
		ctl.Orch.SendError(sid, orch.CodeRateLimited, "too many join attempts")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Msg("join")
	ctl.Orch.JoinRoom(ctx, sid, orch.JoinRequest{
		RoomID: domain.RoomID(p.RoomID),
		UserID: domain.UserID(p.UserID),
		Role:   domain.Role(p.Role),
	})
}

// handleLeave leaves one room; the socket stays open.
func (ctl *SignalWSController) handleLeave(ctx context.Context, sid domain.SessionID, data []byte) {
	var p roomPayload
	if err := decode(data, &p); err != nil {
		ctl.badPayload(sid, err.Error())
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Msg("leave")
	ctl.Orch.LeaveRoom(ctx, sid, domain.RoomID(p.RoomID))
}

func (ctl *SignalWSController) handleScreenShare(ctx context.Context, sid domain.SessionID, data []byte, started bool) {
	var p roomPayload
	if err := decode(data, &p); err != nil {
		ctl.badPayload(sid, err.Error())
		return
	}
	ctl.Orch.ScreenShare(ctx, sid, domain.RoomID(p.RoomID), started)
}
