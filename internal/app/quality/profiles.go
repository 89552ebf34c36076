package quality

import "github.com/dkeye/signalroom/internal/domain"

// DefaultHighProfile is used when the config does not provide media constraints.
func DefaultHighProfile() domain.QualityProfile {
	return domain.QualityProfile{
		Video: domain.VideoConstraints{
			Width:      domain.Range{Min: 640, Ideal: 1280, Max: 1920},
			Height:     domain.Range{Min: 480, Ideal: 720, Max: 1080},
			FrameRate:  domain.Range{Min: 24, Ideal: 30, Max: 60},
			FacingMode: "user",
		},
		Audio: domain.AudioConstraints{
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
			SampleRate:       48000,
			ChannelCount:     2,
		},
	}
}

// deriveProfiles builds the medium and low tiers from high. Video bundles are
// fixed; audio keeps the high processing flags with a lower sample rate, and
// low drops to mono.
func deriveProfiles(high domain.QualityProfile) map[domain.QualityTier]domain.QualityProfile {
	medium := domain.QualityProfile{
		Video: domain.VideoConstraints{
			Width:      domain.Range{Min: 480, Ideal: 640, Max: 1280},
			Height:     domain.Range{Min: 360, Ideal: 480, Max: 720},
			FrameRate:  domain.Range{Min: 15, Ideal: 24, Max: 30},
			FacingMode: "user",
		},
		Audio: high.Audio,
	}
	medium.Audio.SampleRate = 44100

	low := domain.QualityProfile{
		Video: domain.VideoConstraints{
			Width:      domain.Range{Min: 320, Ideal: 480, Max: 640},
			Height:     domain.Range{Min: 240, Ideal: 360, Max: 480},
			FrameRate:  domain.Range{Min: 10, Ideal: 15, Max: 24},
			FacingMode: "user",
		},
		Audio: high.Audio,
	}
	low.Audio.SampleRate = 22050
	low.Audio.ChannelCount = 1

	return map[domain.QualityTier]domain.QualityProfile{
		domain.QualityHigh:   high,
		domain.QualityMedium: medium,
		domain.QualityLow:    low,
	}
}
