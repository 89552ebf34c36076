package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dkeye/signalroom/internal/app/quality"
	"github.com/dkeye/signalroom/internal/domain"
)

const EnvPrefix = "SIGNALROOM"

type RoomsConfig struct {
	MaxParticipants    int           `mapstructure:"max_participants"`
	Timeout            time.Duration `mapstructure:"timeout"`
	CleanupInterval    time.Duration `mapstructure:"cleanup_interval"`
	RecordingEnabled   bool          `mapstructure:"recording_enabled"`
	ScreenShareEnabled bool          `mapstructure:"screen_share_enabled"`
}

type ReconnectConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type RateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type Config struct {
	Mode         string                `mapstructure:"mode"`
	Port         int                   `mapstructure:"port"`
	LogLevel     string                `mapstructure:"log_level"`
	Secret       string                `mapstructure:"secret"`
	AllowGuest   bool                  `mapstructure:"allow_guest"`
	ReadLimit    int64                 `mapstructure:"read_limit"`
	PingPeriod   time.Duration         `mapstructure:"ping_period"`
	Rooms        RoomsConfig           `mapstructure:"rooms"`
	Reconnect    ReconnectConfig       `mapstructure:"reconnect"`
	ICEServers   []ICEServer           `mapstructure:"ice_servers"`
	Media        domain.QualityProfile `mapstructure:"media"`
	JoinRate     RateConfig            `mapstructure:"join_rate"`
	Backpressure string                `mapstructure:"backpressure"`
	Database     DatabaseConfig        `mapstructure:"database"`
	Redis        RedisConfig           `mapstructure:"redis"`
}

// RoomSettings is the default applied to rooms created on first join.
func (c *Config) RoomSettings() domain.RoomSettings {
	return domain.RoomSettings{
		MaxParticipants:    c.Rooms.MaxParticipants,
		Timeout:            c.Rooms.Timeout,
		RecordingEnabled:   c.Rooms.RecordingEnabled,
		ScreenShareEnabled: c.Rooms.ScreenShareEnabled,
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Rooms.MaxParticipants < 1 {
		return fmt.Errorf("rooms.max_participants must be positive, got %d", c.Rooms.MaxParticipants)
	}
	if c.Rooms.Timeout <= 0 || c.Rooms.CleanupInterval <= 0 {
		return fmt.Errorf("rooms.timeout and rooms.cleanup_interval must be positive")
	}
	if c.Reconnect.Delay <= 0 {
		return fmt.Errorf("reconnect.delay must be positive, got %s", c.Reconnect.Delay)
	}
	if c.JoinRate.Limit < 0 {
		return fmt.Errorf("join_rate.limit must not be negative")
	}
	if c.JoinRate.Limit > 0 && c.JoinRate.Interval <= 0 {
		return fmt.Errorf("join_rate.interval must be positive when join_rate.limit is set")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "change-me")
	v.SetDefault("allow_guest", false)
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")

	rs := domain.DefaultRoomSettings()
	v.SetDefault("rooms.max_participants", rs.MaxParticipants)
	v.SetDefault("rooms.timeout", rs.Timeout)
	v.SetDefault("rooms.cleanup_interval", "60s")
	v.SetDefault("rooms.recording_enabled", rs.RecordingEnabled)
	v.SetDefault("rooms.screen_share_enabled", rs.ScreenShareEnabled)

	v.SetDefault("reconnect.delay", "5s")
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})

	m := quality.DefaultHighProfile()
	for key, val := range map[string]any{
		"media.video.width.min":         m.Video.Width.Min,
		"media.video.width.ideal":       m.Video.Width.Ideal,
		"media.video.width.max":         m.Video.Width.Max,
		"media.video.height.min":        m.Video.Height.Min,
		"media.video.height.ideal":      m.Video.Height.Ideal,
		"media.video.height.max":        m.Video.Height.Max,
		"media.video.frame_rate.min":    m.Video.FrameRate.Min,
		"media.video.frame_rate.ideal":  m.Video.FrameRate.Ideal,
		"media.video.frame_rate.max":    m.Video.FrameRate.Max,
		"media.video.facing_mode":       m.Video.FacingMode,
		"media.audio.echo_cancellation": m.Audio.EchoCancellation,
		"media.audio.noise_suppression": m.Audio.NoiseSuppression,
		"media.audio.auto_gain_control": m.Audio.AutoGainControl,
		"media.audio.sample_rate":       m.Audio.SampleRate,
		"media.audio.channel_count":     m.Audio.ChannelCount,
	} {
		v.SetDefault(key, val)
	}

	v.SetDefault("join_rate.limit", 10)
	v.SetDefault("join_rate.interval", "1m")
	v.SetDefault("backpressure", "kick")
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "signalroom.events")
}

// Load reads path, or config/config.<CONFIG_ENV>.yaml when path is empty.
// A missing file is not an error. flags, when given, override file values.
func Load(path string, flags *pflag.FlagSet) (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	fileName := path
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if flags != nil {
		if f := flags.Lookup("port"); f != nil {
			if err := v.BindPFlag("port", f); err != nil {
				return nil, nil, fmt.Errorf("bind port flag: %w", err)
			}
		}
		if f := flags.Lookup("log-level"); f != nil {
			if err := v.BindPFlag("log_level", f); err != nil {
				return nil, nil, fmt.Errorf("bind log-level flag: %w", err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Err(err).Str("module", "config").Str("file", fileName).Msg("config file not loaded, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("log_level", cfg.LogLevel).Msg("config ready")
	return &cfg, v, nil
}

// ApplyLogLevel sets the zerolog global level, keeping the current one on
// an unknown label.
func ApplyLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Err(err).Str("module", "config").Str("level", level).Msg("ignoring log level")
		return
	}
	zerolog.SetGlobalLevel(lvl)
}

// WatchLogLevel re-applies log_level whenever the config file changes.
// Other keys need a restart.
func WatchLogLevel(v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		level := v.GetString("log_level")
		log.Info().Str("module", "config").Str("file", e.Name).Str("op", e.Op.String()).Str("log_level", level).Msg("config changed")
		ApplyLogLevel(level)
	})
	v.WatchConfig()
}
