package engine

import "sync"

// State is a stage of one render.
type State int

const (
	Preloading State = iota
	ScenePlayback
	SceneTransition
	Outro
	Finalizing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Preloading:
		return "preloading"
	case ScenePlayback:
		return "scene"
	case SceneTransition:
		return "transition"
	case Outro:
		return "outro"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Progress is one coarse progress update of a render.
type Progress struct {
	Percent int
	Status  string
	State   State
}

// Observer receives progress updates. Calls come from the render goroutine.
type Observer interface {
	OnProgress(p Progress)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(Progress)

func (f ObserverFunc) OnProgress(p Progress) { f(p) }

// Диапазоны прогресса по этапам рендера
const (
	preloadShare  = 10
	playbackStart = 10
	playbackEnd   = 95
	outroPercent  = 99
	donePercent   = 100
)

// reporter never lets the percent go down and drops repeated updates.
type reporter struct {
	mu       sync.Mutex
	observer Observer
	last     Progress
	started  bool
}

func newReporter(o Observer) *reporter {
	return &reporter{observer: o}
}

func (r *reporter) report(state State, percent int, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	percent = min(max(percent, r.last.Percent, 0), donePercent)
	p := Progress{Percent: percent, Status: status, State: state}
	if r.started && p == r.last {
		return
	}
	r.started = true
	r.last = p
	if r.observer != nil {
		r.observer.OnProgress(p)
	}
}

func (r *reporter) fail(status string) {
	r.mu.Lock()
	percent := r.last.Percent
	r.mu.Unlock()
	r.report(Failed, percent, status)
}

// playbackPercent maps a position inside scene i to the 10..95 band. The
// scene itself takes the first 80% of its slot, the transition the rest.
func playbackPercent(i, n int, fraction float64) int {
	if n <= 0 {
		return playbackStart
	}
	fraction = min(max(fraction, 0), 1)
	pos := (float64(i) + fraction) / float64(n)
	return playbackStart + int(pos*float64(playbackEnd-playbackStart))
}

const sceneSlotShare = 0.8
