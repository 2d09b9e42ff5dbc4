package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-audio/wav"
)

var (
	ErrEmptyAudio    = errors.New("no audio samples")
	ErrDecodeTimeout = errors.New("audio decode timed out")
)

// Format describes raw little-endian signed 16-bit PCM input.
type Format struct {
	SampleRate int
	Channels   int
}

// Buffer is mono float32 PCM at the clock sample rate.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate == 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// DecodeResult is the tagged outcome of a narration decode.
type DecodeResult struct {
	Buffer *Buffer
	Reason error
}

func (r DecodeResult) OK() bool {
	return r.Buffer != nil && r.Reason == nil
}

// Decode converts narration bytes into a clock buffer. WAV input is detected by
// its RIFF header; anything else is read as raw s16le PCM in the given format.
func Decode(data []byte, in Format, outRate int) DecodeResult {
	if len(data) == 0 {
		return DecodeResult{Reason: ErrEmptyAudio}
	}
	if outRate <= 0 {
		return DecodeResult{Reason: fmt.Errorf("invalid output rate %d", outRate)}
	}

	var (
		mono []float32
		rate int
		err  error
	)
	if isWAV(data) {
		mono, rate, err = decodeWAV(data)
	} else {
		mono, rate, err = decodeRaw(data, in)
	}
	if err != nil {
		return DecodeResult{Reason: err}
	}
	if len(mono) == 0 {
		return DecodeResult{Reason: ErrEmptyAudio}
	}

	return DecodeResult{Buffer: &Buffer{
		Samples:    resample(mono, rate, outRate),
		SampleRate: outRate,
	}}
}

// DecodeWithTimeout bounds Decode so a stuck decoder degrades to a failed
// result instead of blocking the timeline.
func DecodeWithTimeout(ctx context.Context, data []byte, in Format, outRate int, timeout time.Duration) DecodeResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan DecodeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- DecodeResult{Reason: fmt.Errorf("decoder panic: %v", r)}
			}
		}()
		ch <- Decode(data, in, outRate)
	}()

	select {
	case res := <-ch:
		return res
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return DecodeResult{Reason: ErrDecodeTimeout}
		}
		return DecodeResult{Reason: ctx.Err()}
	}
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func decodeRaw(data []byte, in Format) ([]float32, int, error) {
	if in.SampleRate <= 0 || in.Channels <= 0 {
		return nil, 0, fmt.Errorf("invalid pcm format %+v", in)
	}
	frameSize := 2 * in.Channels
	frames := len(data) / frameSize
	if frames == 0 {
		return nil, 0, fmt.Errorf("pcm buffer of %d bytes holds no complete frame", len(data))
	}

	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < in.Channels; c++ {
			off := i*frameSize + c*2
			v := int16(binary.LittleEndian.Uint16(data[off:]))
			sum += float32(v) / 32768
		}
		mono[i] = sum / float32(in.Channels)
	}
	return mono, in.SampleRate, nil
}

func decodeWAV(data []byte) ([]float32, int, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, 0, errors.New("invalid wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read wav pcm: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, 0, errors.New("wav file has no format")
	}

	channels := buf.Format.NumChannels
	depth := int(d.BitDepth)
	if depth == 0 {
		depth = buf.SourceBitDepth
	}
	full := math.Exp2(float64(depth - 1))

	frames := len(buf.Data) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			v := float64(buf.Data[i*channels+c])
			if depth == 8 {
				v -= 128
			}
			sum += v / full
		}
		mono[i] = float32(sum / float64(channels))
	}
	return mono, buf.Format.SampleRate, nil
}

// resample converts by linear interpolation.
func resample(in []float32, from, to int) []float32 {
	if from == to || len(in) < 2 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	n := int(math.Round(float64(len(in)) * float64(to) / float64(from)))
	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = in[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = in[j] + (in[j+1]-in[j])*frac
	}
	return out
}
