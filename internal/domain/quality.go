package domain

type QualityTier string

const (
	QualityHigh   QualityTier = "high"
	QualityMedium QualityTier = "medium"
	QualityLow    QualityTier = "low"
)

type Range struct {
	Min   int `json:"min" mapstructure:"min"`
	Ideal int `json:"ideal" mapstructure:"ideal"`
	Max   int `json:"max" mapstructure:"max"`
}

type VideoConstraints struct {
	Width      Range  `json:"width" mapstructure:"width"`
	Height     Range  `json:"height" mapstructure:"height"`
	FrameRate  Range  `json:"frameRate" mapstructure:"frame_rate"`
	FacingMode string `json:"facingMode" mapstructure:"facing_mode"`
}

type AudioConstraints struct {
	EchoCancellation bool `json:"echoCancellation" mapstructure:"echo_cancellation"`
	NoiseSuppression bool `json:"noiseSuppression" mapstructure:"noise_suppression"`
	AutoGainControl  bool `json:"autoGainControl" mapstructure:"auto_gain_control"`
	SampleRate       int  `json:"sampleRate" mapstructure:"sample_rate"`
	ChannelCount     int  `json:"channelCount" mapstructure:"channel_count"`
}

// QualityProfile is a media constraint bundle handed to clients.
type QualityProfile struct {
	Video VideoConstraints `json:"video" mapstructure:"video"`
	Audio AudioConstraints `json:"audio" mapstructure:"audio"`
}
