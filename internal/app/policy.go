package app

import (
	"fmt"

	"github.com/dkeye/signalroom/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a session whose outbound queue is full.
type Policy interface {
	OnBackPressure(target domain.SessionID) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.SessionID) BackpressureAction {
	return KickMember
}

type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.SessionID) BackpressureAction {
	return DropFrame
}

// PolicyByName maps the config value to a policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return DropPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
