package effects

import (
	"math"
	"testing"
)

func TestKenBurnsScaleBounds(t *testing.T) {
	durations := []float64{0.5, 2.0, 3.0, 17.3}

	for parity := 0; parity < 4; parity++ {
		for _, d := range durations {
			for step := 0; step <= 100; step++ {
				elapsed := d * float64(step) / 100 * 1.1 // overshoot slightly past the end
				s := KenBurnsScale(elapsed, d, parity)
				if s < KenBurnsMin-1e-12 || s > KenBurnsMax+1e-12 {
					t.Fatalf("parity %d, duration %.1f, elapsed %.3f: scale %f out of range", parity, d, elapsed, s)
				}
			}
		}
	}
}

func TestKenBurnsDirectionFollowsParity(t *testing.T) {
	tests := []struct {
		parity int
		start  float64
		end    float64
	}{
		{0, KenBurnsMin, KenBurnsMax},
		{1, KenBurnsMax, KenBurnsMin},
		{2, KenBurnsMin, KenBurnsMax},
		{7, KenBurnsMax, KenBurnsMin},
	}

	for _, tt := range tests {
		start := KenBurnsScale(0, 2, tt.parity)
		end := KenBurnsScale(2, 2, tt.parity)
		if math.Abs(start-tt.start) > 1e-12 || math.Abs(end-tt.end) > 1e-12 {
			t.Errorf("parity %d: expected %.2f→%.2f, got %.4f→%.4f", tt.parity, tt.start, tt.end, start, end)
		}
		if ZoomsIn(tt.parity) != (tt.parity%2 == 0) {
			t.Errorf("parity %d: ZoomsIn mismatch", tt.parity)
		}
	}
}

func TestBreathing(t *testing.T) {
	for e := 0.0; e < 20; e += 0.01 {
		b := Breathing(e)
		if math.Abs(b-1) > BreathingAmplitude+1e-12 {
			t.Fatalf("elapsed %.2f: breathing %f exceeds amplitude", e, b)
		}
	}
	if Breathing(0) != 1 {
		t.Errorf("Expected no perturbation at t=0, got %f", Breathing(0))
	}
}

func TestDefaultEffect(t *testing.T) {
	e := &DefaultEffect{}
	s := e.Scale(FrameParams{Elapsed: 1, Duration: 2, Parity: 0})
	want := KenBurnsScale(1, 2, 0) * Breathing(1)
	if s != want {
		t.Errorf("Expected %f, got %f", want, s)
	}
}

func TestEaseInOutCubic(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{0.25, 4 * 0.25 * 0.25 * 0.25},
		{0.5, 0.5},
		{0.75, 1 - 0.125/2},
		{1, 1},
		{2, 1},
	}

	for _, tt := range tests {
		if got := EaseInOutCubic(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("EaseInOutCubic(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	prev := 0.0
	for p := 0.0; p <= 1; p += 0.001 {
		v := EaseInOutCubic(p)
		if v < prev {
			t.Fatalf("easing not monotonic at %f", p)
		}
		prev = v
	}
}

func TestOutroScale(t *testing.T) {
	if OutroScale(0) != OutroStartScale || OutroScale(1) != OutroEndScale {
		t.Errorf("Unexpected outro endpoints: %f %f", OutroScale(0), OutroScale(1))
	}
	if OutroScale(0.5) <= OutroScale(0.25) {
		t.Error("Outro zoom should increase")
	}
}
