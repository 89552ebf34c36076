package rtc

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/config"
	"github.com/dkeye/signalroom/internal/domain"
)

func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs: []string{"stun:stun.l.google.com:19302"},
		},
	}
}

// ClientConfig builds what room-joined hands to clients: the ICE servers
// they should use and the high media profile. Entries without URLs are
// skipped; an empty list falls back to the public STUN server.
func ClientConfig(cfg *config.Config) domain.ClientConfig {
	servers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		if len(s.URLs) == 0 {
			log.Warn().Str("module", "rtc").Msg("ice server without urls, skipped")
			continue
		}
		srv := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			srv.Username = s.Username
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		servers = append(servers, srv)
	}
	if len(servers) == 0 {
		servers = DefaultICEServers()
	}
	log.Info().Str("module", "rtc").Int("ice_servers", len(servers)).Msg("client config ready")
	return domain.ClientConfig{
		ICEServers:       servers,
		MediaConstraints: cfg.Media,
	}
}
