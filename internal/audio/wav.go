package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Format describes PCM sample data.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// BytesPerFrame is the size of one sample across all channels.
func (f Format) BytesPerFrame() int {
	return f.Channels * f.BitsPerSample / 8
}

// Duration of n bytes of PCM data in this format.
func (f Format) Duration(n int) time.Duration {
	frame := f.BytesPerFrame()
	if frame == 0 || f.SampleRate == 0 {
		return 0
	}
	return time.Duration(n/frame) * time.Second / time.Duration(f.SampleRate)
}

// ErrInvalidWAV is returned for data that is not a PCM RIFF/WAVE file.
var ErrInvalidWAV = errors.New("invalid WAV data")

const wavHeaderSize = 44

// EncodeWAV wraps raw little-endian PCM in a canonical 44-byte WAV header.
func EncodeWAV(pcm []byte, f Format) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))

	byteRate := f.SampleRate * f.BytesPerFrame()

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(f.BytesPerFrame()))
	binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// ParseWAV returns the format and the PCM payload of a WAV file. Chunks other
// than "fmt " and "data" are skipped.
func ParseWAV(data []byte) (Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		f      Format
		gotFmt bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			// Streams written before the length was known often claim more
			// data than they carry.
			if id != "data" {
				return Format{}, nil, fmt.Errorf("%w: truncated %q chunk", ErrInvalidWAV, id)
			}
			end = len(data)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, nil, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			if tag := binary.LittleEndian.Uint16(data[body:]); tag != 1 {
				return Format{}, nil, fmt.Errorf("%w: format tag %d is not PCM", ErrUnsupportedFormat, tag)
			}
			f.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			f.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14:]))
			gotFmt = true
		case "data":
			if !gotFmt {
				return Format{}, nil, fmt.Errorf("%w: data before fmt chunk", ErrInvalidWAV)
			}
			return f, data[body:end], nil
		}

		pos = end + end%2 // chunks are word aligned
	}

	return Format{}, nil, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}

// Tone renders a 16-bit mono sine tone. Used for dry runs without a provider.
func Tone(freq float64, d time.Duration, sampleRate int) []byte {
	n := int(d.Seconds() * float64(sampleRate))
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
		// Short fade in and out to avoid clicks.
		env := math.Min(1, math.Min(float64(i), float64(n-i))/float64(sampleRate/100+1))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*env*0.3*math.MaxInt16)))
	}
	return pcm
}
