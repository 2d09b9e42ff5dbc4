package audio

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

var ErrClockClosed = errors.New("audio clock closed")

// TimeSource is the monotonic time base behind a Clock.
type TimeSource interface {
	Now() time.Duration
	Sleep(ctx context.Context, d time.Duration) error
}

type systemTime struct {
	start time.Time
}

func (s systemTime) Now() time.Duration {
	return time.Since(s.start)
}

func (s systemTime) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ManualTime is a virtual time source: Sleep advances time instantly.
type ManualTime struct {
	mu  sync.Mutex
	now time.Duration
}

func (m *ManualTime) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualTime) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Advance(d)
	return nil
}

func (m *ManualTime) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	m.mu.Unlock()
}

// voice is one narration buffer scheduled on the clock's sample timeline.
type voice struct {
	buf   *Buffer
	start int64
	stop  int64
}

// Clock is the single time authority of a render. It plays narration buffers
// on a sample timeline and exposes that timeline to the encoder through
// ReadSamples, so what is heard and what is drawn share one time base.
//
// A new Clock is suspended: Now reports 0 until Resume is called.
type Clock struct {
	mu         sync.Mutex
	src        TimeSource
	sampleRate int
	base       time.Duration
	running    bool
	closed     bool
	voices     []voice
}

type Option func(*Clock)

func WithTimeSource(src TimeSource) Option {
	return func(c *Clock) { c.src = src }
}

func NewClock(sampleRate int, opts ...Option) (*Clock, error) {
	if sampleRate <= 0 {
		return nil, errors.New("audio clock: sample rate must be positive")
	}
	c := &Clock{
		src:        systemTime{start: time.Now()},
		sampleRate: sampleRate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Clock) SampleRate() int {
	return c.sampleRate
}

// Resume starts the clock if it is still suspended.
func (c *Clock) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClockClosed
	}
	if !c.running {
		c.base = c.src.Now()
		c.running = true
	}
	return nil
}

// Now returns elapsed clock time in seconds. It never decreases.
func (c *Clock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowLocked()
}

func (c *Clock) nowLocked() float64 {
	if !c.running {
		return 0
	}
	return (c.src.Now() - c.base).Seconds()
}

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	return c.src.Sleep(ctx, d)
}

// Play starts buf at the current clock position. It does not stop a voice that
// is already playing.
func (c *Clock) Play(buf *Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClockClosed
	}
	if buf == nil || len(buf.Samples) == 0 {
		return nil
	}
	start := c.sampleAt(c.nowLocked())
	c.voices = append(c.voices, voice{buf: buf, start: start, stop: start + int64(len(buf.Samples))})
	return nil
}

// Stop silences every playing voice from the current position on.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.sampleAt(c.nowLocked())
	for i := range c.voices {
		if c.voices[i].stop > now {
			c.voices[i].stop = max(now, c.voices[i].start)
		}
	}
}

// Close stops playback and releases the voices. Closing twice is a no-op.
func (c *Clock) Close() error {
	c.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// ReadSamples fills dst with s16 mono PCM for the clock samples
// [from, from+len(dst)). Positions with nothing playing are silence. Voices
// that end before from are dropped, so reads must move forward.
func (c *Clock) ReadSamples(dst []int16, from int64) {
	clear(dst)

	c.mu.Lock()
	defer c.mu.Unlock()

	to := from + int64(len(dst))
	live := c.voices[:0]
	for _, v := range c.voices {
		if v.stop <= from {
			continue
		}
		live = append(live, v)

		lo := max(from, v.start)
		hi := min(to, v.stop)
		for s := lo; s < hi; s++ {
			sum := float64(dst[s-from]) + float64(v.buf.Samples[s-v.start])*32767
			dst[s-from] = int16(math.Max(-32768, math.Min(32767, sum)))
		}
	}
	c.voices = live
}

func (c *Clock) sampleAt(seconds float64) int64 {
	return int64(math.Round(seconds * float64(c.sampleRate)))
}
