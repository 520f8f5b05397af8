package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgnsrekt/voicebank/internal/audio"
)

const (
	// DefaultBaseURL is the ElevenLabs API root
	DefaultBaseURL = "https://api.elevenlabs.io"

	// DefaultModel is the synthesis model requested when none is configured
	DefaultModel = "eleven_multilingual_v2"

	// DefaultOutputFormat is the provider output requested when none is configured
	DefaultOutputFormat = "mp3_44100_128"

	// DefaultRequestsPerMinute bounds the request rate when none is configured
	DefaultRequestsPerMinute = 60

	maxErrorBody = 512
)

// HTTPConfig configures an HTTPProvider.
type HTTPConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	OutputFormat      string
	RequestsPerMinute int
	HTTPClient        *http.Client
}

// HTTPProvider talks to an ElevenLabs-compatible text-to-speech API.
type HTTPProvider struct {
	baseURL      string
	apiKey       string
	model        string
	outputFormat string
	client       *http.Client
	limiter      *rate.Limiter
}

// NewHTTPProvider validates config and applies defaults.
func NewHTTPProvider(config HTTPConfig) (*HTTPProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key cannot be empty")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.OutputFormat == "" {
		config.OutputFormat = DefaultOutputFormat
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &HTTPProvider{
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		apiKey:       config.APIKey,
		model:        config.Model,
		outputFormat: config.OutputFormat,
		client:       config.HTTPClient,
		limiter:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
	}, nil
}

// Ext returns the file extension of the audio this provider produces.
func (p *HTTPProvider) Ext() string {
	return ExtForFormat(p.outputFormat)
}

// ExtForFormat maps a provider output format such as "mp3_44100_128" or
// "pcm_22050" to a file extension. PCM output is stored as WAV.
func ExtForFormat(format string) string {
	codec, _, _ := strings.Cut(format, "_")
	switch codec {
	case "pcm", "wav":
		return ".wav"
	case "ulaw", "alaw", "opus":
		return "." + codec
	default:
		return ".mp3"
	}
}

type synthesizeBody struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// Synthesize performs one text-to-speech request.
func (p *HTTPProvider) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(synthesizeBody{
		Text:          req.Text,
		ModelID:       p.model,
		VoiceSettings: req.Settings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		p.baseURL, url.PathEscape(req.VoiceID), url.QueryEscape(p.outputFormat))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/*")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	return p.wrapPCM(data), nil
}

// wrapPCM turns raw pcm_<rate> output into a WAV file so cached renditions
// are self-describing.
func (p *HTTPProvider) wrapPCM(data []byte) []byte {
	codec, rest, ok := strings.Cut(p.outputFormat, "_")
	if codec != "pcm" || !ok || len(data) == 0 {
		return data
	}
	rateStr, _, _ := strings.Cut(rest, "_")
	sampleRate, err := strconv.Atoi(rateStr)
	if err != nil || sampleRate <= 0 {
		return data
	}
	return audio.EncodeWAV(data, audio.Format{SampleRate: sampleRate, Channels: 1, BitsPerSample: 16})
}

// ValidateKey fetches the account the key belongs to.
func (p *HTTPProvider) ValidateKey(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/user", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := checkStatus(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
