package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dkeye/signalroom/internal/app/orch"
	"github.com/dkeye/signalroom/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type joinPayload struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
	UserID string `json:"userId" validate:"omitempty,max=64"`
	Role   string `json:"role" validate:"omitempty,oneof=host participant"`
}

type roomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

type relayPayload struct {
	TargetID string          `json:"targetId" validate:"required,max=64"`
	Signal   json.RawMessage `json:"signal" validate:"required"`
}

type connectionStatePayload struct {
	RoomID         string `json:"roomId" validate:"omitempty,max=128"`
	State          string `json:"state" validate:"required"`
	ICEState       string `json:"iceConnectionState"`
	SignalingState string `json:"signalingState"`
}

type qualityPayload struct {
	Stats json.RawMessage `json:"stats"`
}

// decode unmarshals data into v and runs struct validation. The returned
// error is safe to show to the client.
func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.New("malformed payload")
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %s", fe.Field(), fe.Tag())
		}
		return errors.New("invalid payload")
	}
	return nil
}

func (ctl *SignalWSController) badPayload(sid domain.SessionID, msg string) {
	ctl.Orch.SendError(sid, orch.CodeBadPayload, msg)
}
