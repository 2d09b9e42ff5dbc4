package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"math"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ivlev/storyreel/internal/config"
	"github.com/ivlev/storyreel/internal/system"
	"golang.org/x/sync/errgroup"
)

var (
	ErrEncoderStart  = errors.New("encoder failed to start")
	ErrEncoderExited = errors.New("encoder exited before stop")
	ErrEmptyOutput   = errors.New("encoder produced no output")
)

// Clock is the time base the sink samples on.
type Clock interface {
	Now() float64
	Sleep(ctx context.Context, d time.Duration) error
}

// Tap yields the PCM the clock is playing, by sample position.
type Tap interface {
	ReadSamples(dst []int16, from int64)
	SampleRate() int
}

// Frames is the render target the sink captures.
type Frames interface {
	Bounds() image.Rectangle
	Snapshot(dst *image.RGBA)
}

// Sink is a running capture of the canvas and the audio tap into one container.
// Done is closed once the sink has finished, after Stop or because the encoder
// died on its own; Wait then returns without blocking.
type Sink interface {
	Start(ctx context.Context) error
	Stop()
	Done() <-chan struct{}
	Wait(ctx context.Context) ([]byte, error)
}

// FFmpegSink captures the canvas at a fixed frame rate together with the
// clock's audio tap and muxes both through ffmpeg into fragmented MP4.
type FFmpegSink struct {
	cfg    *config.Config
	frames Frames
	clock  Clock
	tap    Tap
	pool   *system.FramePool

	stopOnce sync.Once
	stop     chan struct{}
	exited   chan struct{}
	done     chan struct{}
	started  bool

	captured atomic.Int64
	chunks   [][]byte
	stderr   bytes.Buffer
	err      error
}

func NewFFmpegSink(cfg *config.Config, frames Frames, clock Clock, tap Tap) *FFmpegSink {
	return &FFmpegSink{
		cfg:    cfg,
		frames: frames,
		clock:  clock,
		tap:    tap,
		pool:   system.NewFramePool(frames.Bounds()),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches ffmpeg and the capture loop. The sink must be stopped with
// Stop and drained with Wait.
func (s *FFmpegSink) Start(ctx context.Context) error {
	b := s.frames.Bounds()
	args := buildFFmpegArgs(b.Dx(), b.Dy(), s.cfg)

	cmd := exec.CommandContext(ctx, s.cfg.FFmpegPath, args...)
	cmd.Stderr = &s.stderr

	p, err := openPipes(cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoderStart, err)
	}

	if err := cmd.Start(); err != nil {
		p.audioOut.Close()
		p.audioIn.Close()
		return fmt.Errorf("%w: %v", ErrEncoderStart, err)
	}
	p.audioOut.Close()
	s.started = true

	videoCh := make(chan *image.RGBA, 8)
	audioCh := make(chan []byte, 32)

	// Writers keep draining after a failed write so the capture loop never blocks.
	var writers errgroup.Group
	writers.Go(func() error {
		defer p.videoIn.Close()
		var werr error
		for frame := range videoCh {
			if werr == nil {
				if _, err := p.videoIn.Write(frame.Pix); err != nil {
					werr = fmt.Errorf("write video: %w", err)
				}
			}
			s.pool.Put(frame)
		}
		return werr
	})
	writers.Go(func() error {
		defer p.audioIn.Close()
		var werr error
		for chunk := range audioCh {
			if werr == nil {
				if _, err := p.audioIn.Write(chunk); err != nil {
					werr = fmt.Errorf("write audio: %w", err)
				}
			}
		}
		return werr
	})

	// Процесс может завершиться сам (неверный энкодер, нет GPU): exited
	// закрывается сразу, не дожидаясь Stop.
	var readErr, waitErr error
	go func() {
		defer close(s.exited)
		var chunks [][]byte
		chunks, readErr = collect(p.output)
		s.chunks = chunks
		waitErr = cmd.Wait()
	}()

	go func() {
		defer close(s.done)

		capErr := s.capture(ctx, func(f *image.RGBA) { videoCh <- f }, func(pcm []byte) { audioCh <- pcm })
		close(videoCh)
		close(audioCh)
		writeErr := writers.Wait()
		<-s.exited

		switch {
		case capErr != nil && !errors.Is(capErr, ErrEncoderExited):
			s.err = capErr
		case waitErr != nil:
			s.err = fmt.Errorf("ffmpeg: %w: %s", waitErr, bytes.TrimSpace(s.stderr.Bytes()))
		case writeErr != nil:
			s.err = writeErr
		case readErr != nil:
			s.err = fmt.Errorf("read output: %w", readErr)
		case capErr != nil:
			s.err = capErr
		}
	}()

	log.Printf("[*] Энкодер запущен: %s, %dx%d @ %d FPS", s.cfg.VideoEncoder, b.Dx(), b.Dy(), s.cfg.FPS)
	return nil
}

type ffmpegPipes struct {
	videoIn  io.WriteCloser
	output   io.ReadCloser
	audioOut *os.File // read end, passed to ffmpeg as pipe:3
	audioIn  *os.File
}

// openPipes wires stdin, stdout and the extra audio descriptor of cmd. On
// error every pipe opened so far is closed.
func openPipes(cmd *exec.Cmd) (*ffmpegPipes, error) {
	videoIn, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	output, err := cmd.StdoutPipe()
	if err != nil {
		videoIn.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	audioOut, audioIn, err := os.Pipe()
	if err != nil {
		videoIn.Close()
		output.Close()
		return nil, fmt.Errorf("audio pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{audioOut}
	return &ffmpegPipes{videoIn: videoIn, output: output, audioOut: audioOut, audioIn: audioIn}, nil
}

// Stop asks the capture loop to finish. Completion is signalled through Wait.
func (s *FFmpegSink) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *FFmpegSink) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until ffmpeg has flushed the container and returns it.
func (s *FFmpegSink) Wait(ctx context.Context) ([]byte, error) {
	if !s.started {
		return nil, ErrEncoderStart
	}
	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	out := bytes.Join(s.chunks, nil)
	if len(out) == 0 {
		return nil, ErrEmptyOutput
	}
	return out, nil
}

// FramesCaptured reports how many video frames were handed to the encoder.
func (s *FFmpegSink) FramesCaptured() int64 {
	return s.captured.Load()
}

// capture samples frame k and its audio window once the clock has passed the
// end of that frame, so both streams advance on the same clock readings. If
// the loop falls behind, frames are repeated to keep a constant frame rate.
// It returns ErrEncoderExited as soon as the encoder process is gone.
func (s *FFmpegSink) capture(ctx context.Context, emitVideo func(*image.RGBA), emitAudio func([]byte)) error {
	fps := float64(s.cfg.FPS)
	rate := float64(s.tap.SampleRate())

	for k := int64(0); ; k++ {
		target := float64(k+1) / fps
		for {
			select {
			case <-s.stop:
				return nil
			case <-s.exited:
				return ErrEncoderExited
			default:
			}
			now := s.clock.Now()
			if now >= target {
				break
			}
			// округляем вверх, иначе виртуальное время может застрять у цели
			wait := time.Duration(math.Ceil((target - now) * float64(time.Second)))
			if err := s.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}

		frame := s.pool.Get()
		s.frames.Snapshot(frame)
		emitVideo(frame)

		from := int64(math.Round(float64(k) * rate / fps))
		to := int64(math.Round(float64(k+1) * rate / fps))
		pcm := make([]int16, to-from)
		s.tap.ReadSamples(pcm, from)
		emitAudio(encodeS16LE(pcm))

		s.captured.Add(1)
	}
}

func encodeS16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		out[2*i] = byte(v)
		out[2*i+1] = byte(uint16(v) >> 8)
	}
	return out
}

// collect accumulates the container as it streams out of the encoder.
func collect(r io.Reader) ([][]byte, error) {
	var chunks [][]byte
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			chunks = append(chunks, chunk)
		}
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
	}
}

func buildFFmpegArgs(width, height int, cfg *config.Config) []string {
	encoder := cfg.VideoEncoder
	if encoder == "" {
		encoder = "libx264"
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", fmt.Sprintf("%d", cfg.FPS),
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-ac", "1",
		"-i", "pipe:3",
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", encoder,
	}

	// Фиксированный целевой битрейт для всех энкодеров
	bitrate := fmt.Sprintf("%dk", cfg.VideoBitrateKbps)
	switch encoder {
	case "h264_videotoolbox":
		args = append(args, "-b:v", bitrate)
	case "h264_nvenc":
		args = append(args, "-rc", "cbr", "-b:v", bitrate)
	default: // libx264
		args = append(args,
			"-preset", "veryfast",
			"-b:v", bitrate,
			"-maxrate", bitrate,
			"-bufsize", fmt.Sprintf("%dk", 2*cfg.VideoBitrateKbps),
		)
	}

	args = append(args,
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%d", cfg.FPS),
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", cfg.AudioBitrateKbps),
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		"-f", "mp4",
		"pipe:1",
	)
	return args
}
