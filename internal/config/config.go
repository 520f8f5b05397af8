// Package config loads voicebank settings from viper and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/voicebank/internal/audio"
	"github.com/dgnsrekt/voicebank/internal/promote"
	"github.com/dgnsrekt/voicebank/internal/synth"
)

// Provider names.
const (
	ProviderElevenLabs = "elevenlabs"
	ProviderMock       = "mock"
)

// Upload backends.
const (
	BackendNATS = "nats"
	BackendDir  = "dir"
)

// Config is the full voicebank configuration.
type Config struct {
	ProgressFile string           `mapstructure:"progress_file"`
	WordsFile    string           `mapstructure:"words_file"`
	Voices       []string         `mapstructure:"voices"`
	Cache        CacheConfig      `mapstructure:"cache"`
	Provider     ProviderConfig   `mapstructure:"provider"`
	Generation   GenerationConfig `mapstructure:"generation"`
	Playback     PlaybackConfig   `mapstructure:"playback"`
	Upload       UploadConfig     `mapstructure:"upload"`

	Secrets Secrets `mapstructure:"-"`
}

// CacheConfig locates the local rendition cache.
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// ProviderConfig configures the synthesis provider and client.
type ProviderConfig struct {
	Name              string        `mapstructure:"name"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	OutputFormat      string        `mapstructure:"output_format"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Stability         float64       `mapstructure:"stability"`
	SimilarityBoost   float64       `mapstructure:"similarity_boost"`
	Style             float64       `mapstructure:"style"`
	SpeakerBoost      bool          `mapstructure:"speaker_boost"`
}

// GenerationConfig tunes batch runs.
type GenerationConfig struct {
	Delay       time.Duration `mapstructure:"delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// PlaybackConfig selects the review player.
type PlaybackConfig struct {
	Player  string `mapstructure:"player"`
	Command string `mapstructure:"command"`
}

// UploadConfig selects the promotion destination.
type UploadConfig struct {
	Backend      string     `mapstructure:"backend"`
	Prefix       string     `mapstructure:"prefix"`
	CacheControl string     `mapstructure:"cache_control"`
	Dir          string     `mapstructure:"dir"`
	NATS         NATSConfig `mapstructure:"nats"`
}

// NATSConfig locates the JetStream object store.
type NATSConfig struct {
	URL    string `mapstructure:"url"`
	Bucket string `mapstructure:"bucket"`
}

// Secrets come from the environment only.
type Secrets struct {
	APIKey           string `env:"VOICEBANK_API_KEY"`
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`
}

// Key returns the provider API key, preferring VOICEBANK_API_KEY.
func (s Secrets) Key() string {
	if s.APIKey != "" {
		return s.APIKey
	}
	return s.ElevenLabsAPIKey
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("progress_file", "progress.json")
	v.SetDefault("words_file", "words.json")
	v.SetDefault("voices", []string{})
	v.SetDefault("cache.dir", "audio")

	settings := synth.DefaultVoiceSettings()
	v.SetDefault("provider.name", ProviderElevenLabs)
	v.SetDefault("provider.base_url", synth.DefaultBaseURL)
	v.SetDefault("provider.model", synth.DefaultModel)
	v.SetDefault("provider.output_format", synth.DefaultOutputFormat)
	v.SetDefault("provider.timeout", synth.DefaultTimeout)
	v.SetDefault("provider.max_retries", synth.DefaultMaxRetries)
	v.SetDefault("provider.requests_per_minute", synth.DefaultRequestsPerMinute)
	v.SetDefault("provider.stability", settings.Stability)
	v.SetDefault("provider.similarity_boost", settings.SimilarityBoost)
	v.SetDefault("provider.style", settings.Style)
	v.SetDefault("provider.speaker_boost", settings.SpeakerBoost)

	v.SetDefault("generation.delay", 500*time.Millisecond)
	v.SetDefault("generation.max_attempts", 0)

	v.SetDefault("playback.player", string(audio.KindAuto))
	v.SetDefault("playback.command", "")

	v.SetDefault("upload.backend", BackendNATS)
	v.SetDefault("upload.prefix", "words")
	v.SetDefault("upload.cache_control", promote.DefaultCacheControl)
	v.SetDefault("upload.dir", "")
	v.SetDefault("upload.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("upload.nats.bucket", "voicebank")
}

// Load decodes v, reads secrets from the environment, expands paths and
// validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	secrets, err := env.ParseAs[Secrets]()
	if err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}
	cfg.Secrets = secrets

	cfg.Voices = splitVoices(cfg.Voices)
	for _, p := range []*string{&cfg.ProgressFile, &cfg.WordsFile, &cfg.Cache.Dir, &cfg.Upload.Dir} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return nil, fmt.Errorf("unable to expand %q: %w", *p, err)
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitVoices accepts both a YAML list and a comma separated string, which
// is how VOICEBANK_VOICES arrives.
func splitVoices(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// PrimaryVoice is the first configured voice.
func (c *Config) PrimaryVoice() string {
	if len(c.Voices) == 0 {
		return ""
	}
	return c.Voices[0]
}

// CacheExt is the file extension renditions are cached under.
func (c *Config) CacheExt() string {
	if c.Provider.Name == ProviderMock {
		return ".wav"
	}
	return synth.ExtForFormat(c.Provider.OutputFormat)
}

// VoiceSettings returns the configured synthesis settings.
func (c *Config) VoiceSettings() synth.VoiceSettings {
	return synth.VoiceSettings{
		Stability:       c.Provider.Stability,
		SimilarityBoost: c.Provider.SimilarityBoost,
		Style:           c.Provider.Style,
		SpeakerBoost:    c.Provider.SpeakerBoost,
	}
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Voices) == 0 {
		errs = append(errs, errors.New("at least one voice must be configured"))
	}
	seen := make(map[string]bool, len(c.Voices))
	for _, v := range c.Voices {
		if seen[v] {
			errs = append(errs, fmt.Errorf("voice %q is listed more than once", v))
		}
		seen[v] = true
	}

	if c.ProgressFile == "" {
		errs = append(errs, errors.New("progress_file cannot be empty"))
	}
	if c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir cannot be empty"))
	}

	switch c.Provider.Name {
	case ProviderElevenLabs, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q: use %s or %s", c.Provider.Name, ProviderElevenLabs, ProviderMock))
	}
	if c.Provider.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("provider.timeout must be positive, got %v", c.Provider.Timeout))
	}
	if c.Provider.MaxRetries < 0 || c.Provider.MaxRetries > 10 {
		errs = append(errs, fmt.Errorf("provider.max_retries must be between 0 and 10, got %d", c.Provider.MaxRetries))
	}
	if c.Provider.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("provider.requests_per_minute cannot be negative, got %d", c.Provider.RequestsPerMinute))
	}
	for name, val := range map[string]float64{
		"stability":        c.Provider.Stability,
		"similarity_boost": c.Provider.SimilarityBoost,
		"style":            c.Provider.Style,
	} {
		if val < 0 || val > 1 {
			errs = append(errs, fmt.Errorf("provider.%s must be between 0 and 1, got %.2f", name, val))
		}
	}

	if c.Generation.Delay < 0 {
		errs = append(errs, fmt.Errorf("generation.delay cannot be negative, got %v", c.Generation.Delay))
	}
	if c.Generation.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("generation.max_attempts cannot be negative, got %d", c.Generation.MaxAttempts))
	}

	if _, err := audio.ParseKind(c.Playback.Player); err != nil {
		errs = append(errs, err)
	}

	switch c.Upload.Backend {
	case BackendNATS:
		if c.Upload.NATS.Bucket == "" {
			errs = append(errs, errors.New("upload.nats.bucket cannot be empty"))
		}
	case BackendDir:
		if c.Upload.Dir == "" {
			errs = append(errs, errors.New("upload.dir cannot be empty with the dir backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown upload backend %q: use %s or %s", c.Upload.Backend, BackendNATS, BackendDir))
	}

	return errors.Join(errs...)
}

// RequireAPIKey fails when a real provider is configured without a key.
func (c *Config) RequireAPIKey() error {
	if c.Provider.Name == ProviderMock || c.Secrets.Key() != "" {
		return nil
	}
	return errors.New("no API key: set VOICEBANK_API_KEY or ELEVENLABS_API_KEY")
}
