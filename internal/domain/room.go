package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type (
	RoomID    string
	SessionID string
	Role      string
)

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

func (r Role) Valid() bool { return r == RoleHost || r == RoleParticipant }

var ErrInvalidRoomID = errors.New("invalid room id")

func ValidateRoomID(id RoomID) error {
	if id == "" || len(id) > MaxRoomIDLen {
		return fmt.Errorf("%w: %q", ErrInvalidRoomID, id)
	}
	return nil
}

// Participant is owned by exactly one room.
type Participant struct {
	SessionID       SessionID `json:"sessionId"`
	UserID          UserID    `json:"userId"`
	JoinedAt        time.Time `json:"joinedAt"`
	Role            Role      `json:"role"`
	ConnectionState string    `json:"connectionState,omitempty"`
}

type RoomSettings struct {
	MaxParticipants    int           `json:"maxParticipants"`
	Timeout            time.Duration `json:"timeout"`
	RecordingEnabled   bool          `json:"recordingEnabled"`
	ScreenShareEnabled bool          `json:"screenShareEnabled"`
}

type roomSettingsJSON struct {
	MaxParticipants    int   `json:"maxParticipants"`
	Timeout            int64 `json:"timeout"`
	RecordingEnabled   bool  `json:"recordingEnabled"`
	ScreenShareEnabled bool  `json:"screenShareEnabled"`
}

// MarshalJSON writes Timeout in milliseconds, as clients expect.
func (s RoomSettings) MarshalJSON() ([]byte, error) {
	return json.Marshal(roomSettingsJSON{
		MaxParticipants:    s.MaxParticipants,
		Timeout:            s.Timeout.Milliseconds(),
		RecordingEnabled:   s.RecordingEnabled,
		ScreenShareEnabled: s.ScreenShareEnabled,
	})
}

func (s *RoomSettings) UnmarshalJSON(b []byte) error {
	var w roomSettingsJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = RoomSettings{
		MaxParticipants:    w.MaxParticipants,
		Timeout:            time.Duration(w.Timeout) * time.Millisecond,
		RecordingEnabled:   w.RecordingEnabled,
		ScreenShareEnabled: w.ScreenShareEnabled,
	}
	return nil
}

func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		MaxParticipants:    2,
		Timeout:            5 * time.Minute,
		RecordingEnabled:   true,
		ScreenShareEnabled: true,
	}
}

// SettingsOverride carries only the fields a caller wants to change.
type SettingsOverride struct {
	MaxParticipants    *int
	Timeout            *time.Duration
	RecordingEnabled   *bool
	ScreenShareEnabled *bool
}

var ErrInvalidSettings = errors.New("invalid room settings")

// Merge applies o on top of base. A nil override returns base unchanged.
func (o *SettingsOverride) Merge(base RoomSettings) (RoomSettings, error) {
	if o == nil {
		return base, nil
	}
	out := base
	if o.MaxParticipants != nil {
		if *o.MaxParticipants < 1 {
			return base, fmt.Errorf("%w: max participants %d", ErrInvalidSettings, *o.MaxParticipants)
		}
		out.MaxParticipants = *o.MaxParticipants
	}
	if o.Timeout != nil {
		if *o.Timeout <= 0 {
			return base, fmt.Errorf("%w: timeout %s", ErrInvalidSettings, *o.Timeout)
		}
		out.Timeout = *o.Timeout
	}
	if o.RecordingEnabled != nil {
		out.RecordingEnabled = *o.RecordingEnabled
	}
	if o.ScreenShareEnabled != nil {
		out.ScreenShareEnabled = *o.ScreenShareEnabled
	}
	return out, nil
}

// Room is a read-only snapshot; the coordinator never hands out its live state.
type Room struct {
	ID           RoomID         `json:"id"`
	Participants []Participant  `json:"participants"`
	CreatedAt    time.Time      `json:"createdAt"`
	LastActivity time.Time      `json:"lastActivity"`
	Settings     RoomSettings   `json:"settings"`
	Metadata     map[string]any `json:"metadata"`
}

func (r *Room) Participant(sid SessionID) (Participant, bool) {
	for _, p := range r.Participants {
		if p.SessionID == sid {
			return p, true
		}
	}
	return Participant{}, false
}
