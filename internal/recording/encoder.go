package recording

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

const (
	EncodingPCM16 = "pcm16"
	EncodingWAV   = "wav"
)

// Encoder turns captured frames into payloads for the wire.
// Encode returns a nil payload while it is still accumulating.
type Encoder interface {
	Encode(frame AudioFrame) ([]byte, error)
	Flush() ([]byte, error)
}

// NewEncoder selects the frame encoding strategy by name.
func NewEncoder(name string, cfg Config, interval time.Duration) (Encoder, error) {
	if BytesPerSample(cfg.Format) == 0 {
		return nil, fmt.Errorf("unsupported capture format: %q", cfg.Format)
	}
	switch name {
	case "", EncodingPCM16:
		return &pcm16Encoder{format: cfg.Format}, nil
	case EncodingWAV:
		if interval <= 0 {
			interval = 250 * time.Millisecond
		}
		threshold := int(int64(cfg.SampleRate) * int64(interval) / int64(time.Second))
		if threshold <= 0 {
			threshold = 1
		}
		return &wavEncoder{
			format:     cfg.Format,
			sampleRate: cfg.SampleRate,
			threshold:  threshold,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", name)
	}
}

// DecodeSamples converts raw capture bytes to float samples in [-1, 1].
func DecodeSamples(data []byte, format string) []float32 {
	switch format {
	case "f32le":
		out := make([]float32, len(data)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return out
	case "s16le":
		out := make([]float32, len(data)/2)
		for i := range out {
			s := int16(binary.LittleEndian.Uint16(data[i*2:]))
			out[i] = float32(s) / 0x8000
		}
		return out
	default:
		return nil
	}
}

// FloatToPCM16 clamps each sample to [-1, 1] and scales it to a signed
// 16-bit value: negative samples by 0x8000, positive ones by 0x7fff.
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, v := range samples {
		s := math.Max(-1, math.Min(1, float64(v)))
		if s < 0 {
			out[i] = int16(s * 0x8000)
		} else {
			out[i] = int16(s * 0x7fff)
		}
	}
	return out
}

type pcm16Encoder struct {
	format string
}

func (e *pcm16Encoder) Encode(frame AudioFrame) ([]byte, error) {
	if len(frame.Data) == 0 {
		return nil, nil
	}
	if e.format == "s16le" {
		out := make([]byte, len(frame.Data))
		copy(out, frame.Data)
		return out, nil
	}
	pcm := FloatToPCM16(DecodeSamples(frame.Data, e.format))
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out, nil
}

func (e *pcm16Encoder) Flush() ([]byte, error) { return nil, nil }

type wavEncoder struct {
	format     string
	sampleRate int
	threshold  int
	pending    []int
}

func (e *wavEncoder) Encode(frame AudioFrame) ([]byte, error) {
	for _, s := range FloatToPCM16(DecodeSamples(frame.Data, e.format)) {
		e.pending = append(e.pending, int(s))
	}
	if len(e.pending) < e.threshold {
		return nil, nil
	}
	return e.Flush()
}

func (e *wavEncoder) Flush() ([]byte, error) {
	if len(e.pending) == 0 {
		return nil, nil
	}
	samples := e.pending
	e.pending = nil

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: e.sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}

	out := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(out, e.sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	blob, err := io.ReadAll(out.Reader())
	if err != nil {
		return nil, fmt.Errorf("read wav blob: %w", err)
	}
	return blob, nil
}
