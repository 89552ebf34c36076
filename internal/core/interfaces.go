package core

//go:generate mockgen -destination=mocks/authorizer_mock.go -package=mocks . SessionAuthorizer

import (
	"context"

	"github.com/dkeye/signalroom/internal/domain"
)

// SessionAuthorizer answers whether a verified user may enter a room,
// e.g. "is this user part of the room's underlying record and is it active".
// The orchestrator trusts the answer; errors are infrastructure failures.
type SessionAuthorizer interface {
	CanJoin(ctx context.Context, userID domain.UserID, roomID domain.RoomID) (bool, error)
}

// AllowAll grants every join. Used when no authorization backend is configured.
type AllowAll struct{}

func (AllowAll) CanJoin(context.Context, domain.UserID, domain.RoomID) (bool, error) {
	return true, nil
}
