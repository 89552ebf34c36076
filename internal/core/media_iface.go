package core

import (
	"context"

	"github.com/dkeye/signalroom/internal/domain"
)

// ConstraintApplier is anything able to reconfigure an active capture
// with new video constraints (a client SDK, a media worker).
type ConstraintApplier interface {
	ApplyVideoConstraints(ctx context.Context, c domain.VideoConstraints) error
}
