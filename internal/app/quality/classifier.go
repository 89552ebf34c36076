// Package quality maps transport statistics to a quality tier and the
// media constraint profile that goes with it.
package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/core"
	"github.com/dkeye/signalroom/internal/domain"
)

// Metrics extracted from a stats snapshot. RTT and jitter are in
// milliseconds, PacketLoss is a ratio.
type Metrics struct {
	RoundTripTime float64
	PacketLoss    float64
	Jitter        float64
}

const remoteInboundRTP = "remote-inbound-rtp"

type statEntry struct {
	Type          string   `json:"type"`
	RoundTripTime *float64 `json:"roundTripTime"`
	PacketsLost   *float64 `json:"packetsLost"`
	Jitter        *float64 `json:"jitter"`
}

var ErrBadStats = errors.New("bad stats snapshot")

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	profiles map[domain.QualityTier]domain.QualityProfile
}

func NewClassifier(high domain.QualityProfile) *Classifier {
	return &Classifier{profiles: deriveProfiles(high)}
}

// DetermineNetworkQuality classifies a raw stats snapshot. Any extraction
// failure yields medium.
func (c *Classifier) DetermineNetworkQuality(raw json.RawMessage) domain.QualityTier {
	m, err := ExtractMetrics(raw)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.quality").Msg("stats extraction failed, using medium")
		return domain.QualityMedium
	}
	return Classify(m)
}

func Classify(m Metrics) domain.QualityTier {
	switch {
	case m.RoundTripTime < 100 && m.PacketLoss < 0.1 && m.Jitter < 30:
		return domain.QualityHigh
	case m.RoundTripTime < 300 && m.PacketLoss < 0.5 && m.Jitter < 50:
		return domain.QualityMedium
	default:
		return domain.QualityLow
	}
}

// ExtractMetrics accepts a stats report as a list of stat objects, as an
// object keyed by stat id, or as a single flat stat object. The last
// remote-inbound-rtp entry wins; missing fields default to zero.
func ExtractMetrics(raw json.RawMessage) (Metrics, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return Metrics{}, nil
	}

	var entries []statEntry
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &entries); err != nil {
			return Metrics{}, fmt.Errorf("%w: %v", ErrBadStats, err)
		}
	case '{':
		var flat statEntry
		if err := json.Unmarshal(raw, &flat); err == nil && (flat.isMetric() || flat.Type != "") {
			if flat.Type == "" {
				flat.Type = remoteInboundRTP
			}
			entries = []statEntry{flat}
			break
		}
		var byID map[string]statEntry
		if err := json.Unmarshal(raw, &byID); err != nil {
			return Metrics{}, fmt.Errorf("%w: %v", ErrBadStats, err)
		}
		for _, e := range byID {
			entries = append(entries, e)
		}
	default:
		return Metrics{}, fmt.Errorf("%w: unexpected %q", ErrBadStats, raw[0])
	}

	var m Metrics
	for _, e := range entries {
		if e.Type != remoteInboundRTP {
			continue
		}
		m = Metrics{
			RoundTripTime: deref(e.RoundTripTime),
			PacketLoss:    deref(e.PacketsLost),
			Jitter:        deref(e.Jitter),
		}
	}
	for _, v := range []float64{m.RoundTripTime, m.PacketLoss, m.Jitter} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Metrics{}, fmt.Errorf("%w: invalid metric %v", ErrBadStats, v)
		}
	}
	return m, nil
}

func (e statEntry) isMetric() bool {
	return e.RoundTripTime != nil || e.PacketsLost != nil || e.Jitter != nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// Profile returns the profile for tier, falling back to medium.
func (c *Classifier) Profile(tier domain.QualityTier) domain.QualityProfile {
	if p, ok := c.profiles[tier]; ok {
		return p
	}
	return c.profiles[domain.QualityMedium]
}

// ApplyQualityProfile pushes the tier's video constraints to a capture.
func (c *Classifier) ApplyQualityProfile(ctx context.Context, target core.ConstraintApplier, tier domain.QualityTier) error {
	p := c.Profile(tier)
	if err := target.ApplyVideoConstraints(ctx, p.Video); err != nil {
		log.Error().Err(err).Str("module", "app.quality").Str("tier", string(tier)).Msg("apply video constraints")
		return fmt.Errorf("apply %s profile: %w", tier, err)
	}
	log.Info().Str("module", "app.quality").Str("tier", string(tier)).Msg("applied quality profile")
	return nil
}
