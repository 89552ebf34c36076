package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 2, cfg.Rooms.MaxParticipants)
	assert.Equal(t, 5*time.Minute, cfg.Rooms.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Reconnect.Delay)
	assert.Equal(t, "kick", cfg.Backpressure)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)
	assert.Equal(t, 1280, cfg.Media.Video.Width.Ideal)
	assert.Equal(t, 48000, cfg.Media.Audio.SampleRate)

	rs := cfg.RoomSettings()
	assert.True(t, rs.ScreenShareEnabled)
	assert.True(t, rs.RecordingEnabled)
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	p := writeFile(t, `
port: 9000
rooms:
  max_participants: 4
  timeout: 90s
ice_servers:
  - urls: ["turn:turn.example.org:3478"]
    username: u
    credential: p
media:
  video:
    frame_rate:
      ideal: 25
`)
	t.Setenv("SIGNALROOM_BACKPRESSURE", "drop")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	require.NoError(t, flags.Parse([]string{"--port=9100"}))

	cfg, _, err := Load(p, flags)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 4, cfg.Rooms.MaxParticipants)
	assert.Equal(t, 90*time.Second, cfg.Rooms.Timeout)
	assert.Equal(t, "drop", cfg.Backpressure)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, "u", cfg.ICEServers[0].Username)
	assert.Equal(t, 25, cfg.Media.Video.FrameRate.Ideal)
	assert.Equal(t, 1280, cfg.Media.Video.Width.Ideal)
}

func TestLoad_Invalid(t *testing.T) {
	p := writeFile(t, "rooms:\n  max_participants: 0\n")
	_, _, err := Load(p, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_participants")

	p = writeFile(t, "log_level: loud\n")
	_, _, err = Load(p, nil)
	require.Error(t, err)
}
