package effects

import "math"

const (
	KenBurnsMin = 1.10
	KenBurnsMax = 1.25

	// Breathing is a small sinusoidal scale perturbation on top of Ken-Burns.
	BreathingAmplitude = 0.005
	BreathingFrequency = 2.0 // rad/s of elapsed time

	// Scene A leaves a transition at the late Ken-Burns scale, scene B enters mildly zoomed.
	TransitionOutgoingScale = KenBurnsMax
	TransitionIncomingScale = KenBurnsMin

	OutroStartScale = KenBurnsMax
	OutroEndScale   = 1.35
)

// FrameParams is the timing of one scene frame.
type FrameParams struct {
	Elapsed  float64 // seconds since the scene started
	Duration float64 // scene display duration in seconds
	Parity   int     // scene sequence index; even zooms in, odd zooms out
}

// Effect decides the camera scale applied on top of cover-fit.
type Effect interface {
	Scale(p FrameParams) float64
}

// DefaultEffect is Ken-Burns zoom with a breathing oscillation.
type DefaultEffect struct{}

func (e *DefaultEffect) Scale(p FrameParams) float64 {
	return KenBurnsScale(p.Elapsed, p.Duration, p.Parity) * Breathing(p.Elapsed)
}

// KenBurnsScale ranges over [KenBurnsMin, KenBurnsMax] across the scene,
// zooming in for even parity and out for odd parity.
func KenBurnsScale(elapsed, duration float64, parity int) float64 {
	progress := 1.0
	if duration > 0 {
		progress = Clamp01(elapsed / duration)
	}
	if ZoomsIn(parity) {
		return Lerp(KenBurnsMin, KenBurnsMax, progress)
	}
	return Lerp(KenBurnsMax, KenBurnsMin, progress)
}

func ZoomsIn(parity int) bool {
	return parity%2 == 0
}

// Breathing returns a multiplicative factor close to 1.
func Breathing(elapsed float64) float64 {
	return 1 + BreathingAmplitude*math.Sin(BreathingFrequency*elapsed)
}

// OutroScale slowly pushes in while the last scene fades to black.
func OutroScale(progress float64) float64 {
	return Lerp(OutroStartScale, OutroEndScale, Clamp01(progress))
}
