package synth

import "context"

// VoiceSettings tune the provider's rendition of a voice.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings returns the settings used when none are configured.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0,
		SpeakerBoost:    true,
	}
}

// Request is one synthesis call.
type Request struct {
	Text     string
	VoiceID  string
	Settings VoiceSettings
}

// Provider performs a single attempt against a speech-synthesis service.
// Retries and classification belong to Client.
type Provider interface {
	// Synthesize returns the audio bytes for req. Non-2xx responses are
	// reported as *StatusError.
	Synthesize(ctx context.Context, req Request) ([]byte, error)

	// ValidateKey performs a cheap authenticated call.
	ValidateKey(ctx context.Context) error
}
