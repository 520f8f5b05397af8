package synth

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dgnsrekt/voicebank/internal/audio"
)

const mockSampleRate = 22050

// MockProvider renders a short tone per request without any network access.
// The pitch depends on the voice so renditions are audibly different. Errors
// can be scripted per call for tests.
type MockProvider struct {
	mu      sync.Mutex
	calls   []Request
	script  []error
	always  error
	keyErr  error
	latency time.Duration
}

// NewMockProvider returns a provider that always succeeds.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// FailNext queues errors returned by the next calls, one per call.
func (m *MockProvider) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, errs...)
}

// FailAlways makes every call return err. A nil err restores success.
func (m *MockProvider) FailAlways(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.always = err
}

// SetKeyError sets the error returned by ValidateKey.
func (m *MockProvider) SetKeyError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyErr = err
}

// SetLatency delays every call, honouring cancellation.
func (m *MockProvider) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// Calls returns every request received.
func (m *MockProvider) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// CallCount returns the number of Synthesize calls.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Ext returns the extension of the audio produced.
func (m *MockProvider) Ext() string {
	return ".wav"
}

// Synthesize implements Provider.
func (m *MockProvider) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	var err error
	if len(m.script) > 0 {
		err, m.script = m.script[0], m.script[1:]
	} else {
		err = m.always
	}
	latency := m.latency
	m.mu.Unlock()

	if latency > 0 {
		if serr := Sleep(ctx, latency); serr != nil {
			return nil, serr
		}
	}
	if err != nil {
		return nil, err
	}

	h := fnv.New32a()
	h.Write([]byte(req.VoiceID))
	freq := 220 + float64(h.Sum32()%440)
	d := 150*time.Millisecond + time.Duration(len(req.Text))*20*time.Millisecond

	pcm := audio.Tone(freq, d, mockSampleRate)
	return audio.EncodeWAV(pcm, audio.Format{SampleRate: mockSampleRate, Channels: 1, BitsPerSample: 16}), nil
}

// ValidateKey implements Provider.
func (m *MockProvider) ValidateKey(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keyErr
}
