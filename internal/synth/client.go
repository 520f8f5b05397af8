// Package synth turns text into audio through an external speech-synthesis
// provider. Client wraps a Provider with a per-call timeout, a closed error
// taxonomy and bounded exponential backoff.
package synth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 3

	// DefaultTimeout bounds a single provider call
	DefaultTimeout = 30 * time.Second

	baseBackoff = time.Second
	maxBackoff  = 8 * time.Second
)

// ErrEmptyText is wrapped in a validation error when asked to voice nothing.
var ErrEmptyText = errors.New("text cannot be empty")

// Client performs synthesis calls with retry.
type Client struct {
	provider   Provider
	settings   VoiceSettings
	maxRetries int
	timeout    time.Duration
	sleep      func(context.Context, time.Duration) error
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMaxRetries sets how many times a retryable failure is repeated.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithTimeout sets the deadline of each individual attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithVoiceSettings sets the settings sent with every request.
func WithVoiceSettings(s VoiceSettings) Option {
	return func(c *Client) { c.settings = s }
}

// WithLogger sets the logger for retry messages.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSleep replaces the backoff wait, mostly for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// NewClient wraps provider.
func NewClient(provider Provider, opts ...Option) *Client {
	c := &Client{
		provider:   provider,
		settings:   DefaultVoiceSettings(),
		maxRetries: DefaultMaxRetries,
		timeout:    DefaultTimeout,
		sleep:      Sleep,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxRetries returns the configured retry ceiling.
func (c *Client) MaxRetries() int {
	return c.maxRetries
}

// Backoff is the wait after the given failed attempt (1-based):
// min(1s * 2^(attempt-1), 8s).
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseBackoff
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

// Generate voices text with voiceID. Authentication and validation failures
// return after one attempt; other failures are retried up to MaxRetries times.
// Every error returned is an *Error.
func (c *Client) Generate(ctx context.Context, text, voiceID string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Kind: KindValidation, Attempts: 0, Err: ErrEmptyText}
	}

	req := Request{Text: text, VoiceID: voiceID, Settings: c.settings}

	var last *Error
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		audio, err := c.attempt(ctx, req)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("Synthesis succeeded after retry", "voice", voiceID, "attempt", attempt)
			}
			return audio, nil
		}

		last = &Error{
			Kind:       Classify(err),
			StatusCode: statusCodeOf(err),
			Attempts:   attempt,
			Err:        err,
		}

		// The caller gave up; this is not the provider's fault.
		if ctx.Err() != nil {
			last.Err = errors.Join(err, ctx.Err())
			return nil, last
		}
		if !last.Kind.Retryable() || attempt > c.maxRetries {
			break
		}

		wait := Backoff(attempt)
		c.logger.Warn("Synthesis failed, retrying",
			"voice", voiceID, "kind", last.Kind, "attempt", attempt, "wait", wait, "err", err)
		if err := c.sleep(ctx, wait); err != nil {
			last.Err = errors.Join(last.Err, err)
			return nil, last
		}
	}

	return nil, last
}

func (c *Client) attempt(ctx context.Context, req Request) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	audio, err := c.provider.Synthesize(callCtx, req)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.New("provider returned empty audio")
	}
	return audio, nil
}

// ValidateKey probes the provider once. A rejected key yields false with a
// nil error; any other failure is returned so the caller can tell a bad key
// from an unreachable provider.
func (c *Client) ValidateKey(ctx context.Context) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.provider.ValidateKey(callCtx)
	if err == nil {
		return true, nil
	}
	if Classify(err) == KindAuthentication {
		return false, nil
	}
	return false, &Error{Kind: Classify(err), StatusCode: statusCodeOf(err), Attempts: 1, Err: err}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
