package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/image/font/opentype"

	"github.com/ivlev/storyreel/internal/audio"
	"github.com/ivlev/storyreel/internal/config"
	"github.com/ivlev/storyreel/internal/effects"
	"github.com/ivlev/storyreel/internal/renderer"
	"github.com/ivlev/storyreel/internal/source"
	"github.com/ivlev/storyreel/internal/story"
	"github.com/ivlev/storyreel/internal/video"
)

// Фиксированные длительности таймлайна, в секундах
const (
	FallbackSceneDuration = 3.0
	TransitionDuration    = 0.8
	OutroDuration         = 1.5
	OutroHold             = 0.2
)

const MimeType = "video/mp4"

// drainTimeout bounds how long a failed render waits for the encoder to exit.
const drainTimeout = 10 * time.Second

var (
	ErrEmptyStory       = errors.New("story has no scenes")
	ErrNoDrawableAssets = errors.New("no scene image could be decoded")
)

type SegmentKind string

const (
	SegmentScene      SegmentKind = "scene"
	SegmentTransition SegmentKind = "transition"
	SegmentOutro      SegmentKind = "outro"
	SegmentHold       SegmentKind = "hold"
)

// Segment is one stretch of the timeline as the driver scheduled it.
// Scene is the index into Story.Scenes; for a transition it is the outgoing scene.
type Segment struct {
	Kind     SegmentKind
	Scene    int
	Duration float64
	Frames   int
	Silent   bool
}

type Artifact struct {
	Data     []byte
	FileName string
	MimeType string
}

type Result struct {
	RenderID string
	Artifact Artifact
	Schedule []Segment
}

// TimelineLength sums the scheduled segment durations.
func (r *Result) TimelineLength() float64 {
	total := 0.0
	for _, s := range r.Schedule {
		total += s.Duration
	}
	return total
}

// Deps are the collaborators of a Project. Nil fields get production defaults.
type Deps struct {
	NewClock func(sampleRate int) (*audio.Clock, error)
	NewSink  func(cfg *config.Config, frames video.Frames, clock *audio.Clock) video.Sink
	Loader   *source.Loader
	Font     *opentype.Font
	Effect   effects.Effect
	Observer Observer
}

// Project renders stories into video with one configuration.
type Project struct {
	cfg  *config.Config
	deps Deps
}

func NewProject(cfg *config.Config, deps Deps) *Project {
	if deps.NewClock == nil {
		deps.NewClock = func(rate int) (*audio.Clock, error) { return audio.NewClock(rate) }
	}
	if deps.NewSink == nil {
		deps.NewSink = func(cfg *config.Config, frames video.Frames, clock *audio.Clock) video.Sink {
			return video.NewFFmpegSink(cfg, frames, clock, clock)
		}
	}
	if deps.Loader == nil {
		deps.Loader = source.NewLoader(cfg.PreloadWorkers)
	}
	if deps.Effect == nil {
		deps.Effect = &effects.DefaultEffect{}
	}
	return &Project{cfg: cfg, deps: deps}
}

// render is the state of one Run call.
type render struct {
	cfg      *config.Config
	id       string
	story    *story.Story
	images   []image.Image
	canvas   *renderer.Canvas
	rend     *renderer.Renderer
	clock    *audio.Clock
	sink     video.Sink
	progress *reporter
	schedule []Segment
	timings  phaseTimings
}

func (r *render) tag() string {
	return r.id[:8]
}

// Run drives one story through preload, playback, outro and finalization and
// returns the encoded video. On error no artifact is produced and every
// acquired resource has been released.
func (p *Project) Run(ctx context.Context, st *story.Story) (*Result, error) {
	if st == nil || len(st.Scenes) == 0 {
		return nil, ErrEmptyStory
	}

	r := &render{
		cfg:      p.cfg,
		id:       uuid.NewString(),
		story:    st,
		progress: newReporter(p.deps.Observer),
	}

	res, err := p.run(ctx, r)
	if err != nil {
		r.progress.fail(err.Error())
		log.Printf("[-] [%s] Рендер прерван: %v", r.tag(), err)
		return nil, err
	}
	return res, nil
}

func (p *Project) run(ctx context.Context, r *render) (*Result, error) {
	started := time.Now()
	st := r.story
	w, h := st.AspectRatio.Dimensions()
	log.Printf("[*] [%s] Рендер «%s»: сцен %d, %dx%d (%s)", r.tag(), st.Title, len(st.Scenes), w, h, st.AspectRatio.Orientation())

	// 1. Preloading
	r.progress.report(Preloading, 0, "Загрузка изображений")
	assets, err := p.deps.Loader.Preload(ctx, st.Scenes, func(done, total int) {
		r.progress.report(Preloading, preloadShare*done/total, fmt.Sprintf("Изображения %d/%d", done, total))
	})
	if err != nil {
		return nil, fmt.Errorf("preload: %w", err)
	}

	r.images = make([]image.Image, len(assets))
	drawable := 0
	for i, a := range assets {
		if a.Image.OK() {
			r.images[i] = renderer.PrepareImage(a.Image.Image, w, h)
			drawable++
		}
	}
	if drawable == 0 {
		return nil, ErrNoDrawableAssets
	}
	r.timings.preload = time.Since(started)

	r.canvas = renderer.NewCanvas(w, h)
	r.rend, err = p.newRenderer(st.AspectRatio, w, h)
	if err != nil {
		return nil, err
	}

	r.clock, err = p.deps.NewClock(p.cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("audio clock: %w", err)
	}
	defer r.clock.Close()

	sink := p.deps.NewSink(p.cfg, r.canvas, r.clock)
	if err := sink.Start(ctx); err != nil {
		return nil, fmt.Errorf("start encoder: %w", err)
	}
	r.sink = sink
	finalized := false
	defer func() {
		if finalized {
			return
		}
		sink.Stop()
		r.clock.Close()
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		sink.Wait(drainCtx)
	}()

	if err := r.clock.Resume(); err != nil {
		return nil, fmt.Errorf("audio clock: %w", err)
	}

	// 2. Сцены и переходы строго последовательно
	playbackStarted := time.Now()
	for i := range st.Scenes {
		if err := r.playScene(ctx, i); err != nil {
			return nil, err
		}
		if i+1 < len(st.Scenes) {
			if err := r.transition(ctx, i); err != nil {
				return nil, err
			}
		}
	}
	r.timings.playback = time.Since(playbackStarted)

	// 3. Outro
	outroStarted := time.Now()
	if err := r.outro(ctx); err != nil {
		return nil, err
	}
	r.timings.outro = time.Since(outroStarted)

	// 4. Finalizing
	r.progress.report(Finalizing, outroPercent, "Сборка видео")
	finalizeStarted := time.Now()
	finalized = true
	sink.Stop()
	r.clock.Close()
	data, err := sink.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	r.timings.finalize = time.Since(finalizeStarted)
	r.timings.total = time.Since(started)

	res := &Result{
		RenderID: r.id,
		Artifact: Artifact{Data: data, FileName: st.FileName(), MimeType: MimeType},
		Schedule: r.schedule,
	}

	log.Printf("[+] [%s] Видео собрано: %s, таймлайн %.2fs, %s", r.tag(), res.Artifact.FileName, res.TimelineLength(), humanize.Bytes(uint64(len(data))))
	if p.cfg.ShowStats {
		r.printReport(res, sink)
	}
	r.progress.report(Done, donePercent, "Готово")
	return res, nil
}

func (p *Project) newRenderer(aspect story.AspectRatio, w, h int) (*renderer.Renderer, error) {
	f := p.deps.Font
	if f == nil {
		var err error
		if f, err = renderer.LoadFont(p.cfg.FontPath); err != nil {
			return nil, err
		}
	}
	subs, err := renderer.NewSubtitles(f, aspect.IsVertical())
	if err != nil {
		return nil, err
	}

	rend := renderer.NewRenderer(subs, p.deps.Effect)
	if p.cfg.ShareURL != "" {
		card, err := renderer.NewEndCard(p.cfg.ShareURL, renderer.EndCardSize(w, h))
		if err != nil {
			log.Printf("[!] QR-карточка не создана: %v", err)
		} else {
			rend.EndCard = card
		}
	}
	return rend, nil
}

// playScene shows scene i for the length of its narration, or the fallback
// duration when it has none. Narration is silenced as soon as the loop exits.
func (r *render) playScene(ctx context.Context, i int) error {
	scene := r.story.Scenes[i]
	n := len(r.story.Scenes)
	duration, buf := r.sceneAudio(ctx, scene)
	status := fmt.Sprintf("Сцена %d/%d", i+1, n)

	if buf != nil {
		if err := r.clock.Play(buf); err != nil {
			return fmt.Errorf("scene %d: %w", scene.SequenceIndex, err)
		}
	}
	defer r.clock.Stop()

	frames, err := r.loop(ctx, duration, func(elapsed float64) {
		r.rend.RenderSceneFrame(r.canvas, r.images[i], scene.Narration, elapsed, duration, scene.SequenceIndex)
		r.progress.report(ScenePlayback, playbackPercent(i, n, sceneSlotShare*elapsed/duration), status)
	})
	r.schedule = append(r.schedule, Segment{Kind: SegmentScene, Scene: i, Duration: duration, Frames: frames, Silent: buf == nil})
	if err == nil {
		log.Printf("[>] [%s] Сцена %d/%d: %.2fs, кадров %d", r.tag(), i+1, n, duration, frames)
	}
	return err
}

// sceneAudio decodes the narration right before the scene plays. Any failure
// degrades to a silent scene of FallbackSceneDuration.
func (r *render) sceneAudio(ctx context.Context, scene story.Scene) (float64, *audio.Buffer) {
	if !scene.HasAudio() {
		return FallbackSceneDuration, nil
	}
	in := audio.Format{SampleRate: r.cfg.InputAudio.SampleRate, Channels: r.cfg.InputAudio.Channels}
	res := audio.DecodeWithTimeout(ctx, scene.Audio, in, r.clock.SampleRate(), r.cfg.DecodeTimeout)
	if !res.OK() {
		log.Printf("[!] [%s] Scene %d: narration unavailable, showing for %.1fs: %v", r.tag(), scene.SequenceIndex, FallbackSceneDuration, res.Reason)
		return FallbackSceneDuration, nil
	}
	return res.Buffer.Duration(), res.Buffer
}

func (r *render) transition(ctx context.Context, i int) error {
	n := len(r.story.Scenes)
	status := fmt.Sprintf("Переход %d→%d", i+1, i+2)

	frames, err := r.loop(ctx, TransitionDuration, func(elapsed float64) {
		p := elapsed / TransitionDuration
		r.rend.RenderTransitionFrame(r.canvas, r.images[i], r.images[i+1], p)
		r.progress.report(SceneTransition, playbackPercent(i, n, sceneSlotShare+(1-sceneSlotShare)*p), status)
	})
	r.schedule = append(r.schedule, Segment{Kind: SegmentTransition, Scene: i, Duration: TransitionDuration, Frames: frames, Silent: true})
	return err
}

// outro fades the last scene to black, then holds a black frame so the
// encoder captures a clean ending.
func (r *render) outro(ctx context.Context) error {
	last := len(r.story.Scenes) - 1
	r.progress.report(Outro, outroPercent, "Финал")

	frames, err := r.loop(ctx, OutroDuration, func(elapsed float64) {
		r.rend.RenderOutroFrame(r.canvas, r.images[last], elapsed/OutroDuration)
	})
	r.schedule = append(r.schedule, Segment{Kind: SegmentOutro, Scene: last, Duration: OutroDuration, Frames: frames, Silent: true})
	if err != nil {
		return err
	}

	frames, err = r.loop(ctx, OutroHold, func(float64) {
		r.rend.RenderBlackFrame(r.canvas)
	})
	r.schedule = append(r.schedule, Segment{Kind: SegmentHold, Scene: last, Duration: OutroHold, Frames: frames, Silent: true})
	return err
}

// loop paints frames paced by the clock until duration seconds have passed
// since its first reading. The last frame may overshoot by one interval.
// Frame k is due at start + k·interval: the sleep only covers what is left of
// the interval after painting, and a late frame is painted without sleeping.
func (r *render) loop(ctx context.Context, duration float64, paint func(elapsed float64)) (int, error) {
	interval := r.cfg.FrameInterval().Seconds()
	start := r.clock.Now()
	frames := 0
	for {
		select {
		case <-r.sink.Done():
			return frames, r.encoderGone(ctx)
		default:
		}

		elapsed := r.clock.Now() - start
		if elapsed >= duration {
			return frames, nil
		}
		paint(elapsed)
		frames++

		wait := start + float64(frames)*interval - r.clock.Now()
		if wait <= 0 {
			if err := ctx.Err(); err != nil {
				return frames, err
			}
			continue
		}
		// округляем вверх, иначе виртуальное время может не дойти до дедлайна
		if err := r.clock.Sleep(ctx, time.Duration(math.Ceil(wait*float64(time.Second)))); err != nil {
			return frames, err
		}
	}
}

// encoderGone reports an encoder that finished before the timeline asked it to.
func (r *render) encoderGone(ctx context.Context) error {
	_, err := r.sink.Wait(ctx)
	if err == nil {
		err = video.ErrEncoderExited
	}
	return fmt.Errorf("encoder stopped early: %w", err)
}
