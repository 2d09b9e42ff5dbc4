package renderer

import (
	"image"
	"image/color"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ivlev/storyreel/internal/effects"
)

// fixedWidth measures every rune as w pixels.
func fixedWidth(w float64) func(string) float64 {
	return func(s string) float64 {
		return float64(utf8.RuneCountInString(s)) * w
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxWidth  float64
		wantLines int
	}{
		{"empty", "", 100, 1},
		{"single char fits", "a", 100, 1},
		{"single char too wide", "W", 5, 1},
		{"all unbreakable", "abc", 5, 3},
		{"cjk", "从前有一座山山里有一座庙庙里有一个老和尚", 100, 2},
		{"exact fit", "abcde", 50, 1},
		{"spaces kept", "ab cd ef", 30, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			measure := fixedWidth(10)
			lines := WrapText(tt.text, tt.maxWidth, measure)

			if len(lines) != tt.wantLines {
				t.Errorf("Expected %d lines, got %d: %q", tt.wantLines, len(lines), lines)
			}
			if got := strings.Join(lines, ""); got != tt.text {
				t.Errorf("Lines do not reproduce the text: %q != %q", got, tt.text)
			}
			for _, line := range lines {
				if utf8.RuneCountInString(line) > 1 && measure(line) > tt.maxWidth {
					t.Errorf("Line %q exceeds %.0fpx", line, tt.maxWidth)
				}
				again := WrapText(line, tt.maxWidth, measure)
				if len(again) != 1 || again[0] != line {
					t.Errorf("Wrapping %q again changed it: %q", line, again)
				}
			}
		})
	}
}

func TestSubtitleLinesFitCanvas(t *testing.T) {
	f, err := LoadFont("")
	if err != nil {
		t.Fatalf("LoadFont failed: %v", err)
	}

	for _, vertical := range []bool{false, true} {
		subs, err := NewSubtitles(f, vertical)
		if err != nil {
			t.Fatal(err)
		}
		width := 1280
		if vertical {
			width = 720
		}

		text := strings.Repeat("Once upon a time a kite flew over the hills. ", 6)
		lines := subs.Lines(text, width)
		if len(lines) < 2 {
			t.Errorf("vertical=%v: expected several lines, got %d", vertical, len(lines))
		}
		if strings.Join(lines, "") != text {
			t.Errorf("vertical=%v: lines do not reproduce the narration", vertical)
		}
		for _, line := range lines {
			if w := subs.measure(line); w > subs.MaxLineWidth(width) {
				t.Errorf("vertical=%v: line %q is %.1fpx wide", vertical, line, w)
			}
		}
	}

	if LayoutFor(true).FontSize <= LayoutFor(false).FontSize {
		t.Error("Vertical canvases should use a larger font")
	}
	if LayoutFor(true).BottomMargin <= LayoutFor(false).BottomMargin {
		t.Error("Vertical canvases should use a larger bottom margin")
	}
}

func TestCoverScale(t *testing.T) {
	tests := []struct{ iw, ih, cw, ch float64 }{
		{1024, 1024, 1280, 720},
		{1024, 1024, 720, 1280},
		{1920, 1080, 720, 1280},
		{300, 900, 1280, 720},
	}

	for _, tt := range tests {
		k := CoverScale(tt.iw, tt.ih, tt.cw, tt.ch)
		if tt.iw*k < tt.cw-1e-9 || tt.ih*k < tt.ch-1e-9 {
			t.Errorf("%vx%v on %vx%v: scale %f does not cover", tt.iw, tt.ih, tt.cw, tt.ch, k)
		}
		if math.Abs(tt.iw*k-tt.cw) > 1e-9 && math.Abs(tt.ih*k-tt.ch) > 1e-9 {
			t.Errorf("%vx%v on %vx%v: scale %f is larger than needed", tt.iw, tt.ih, tt.cw, tt.ch, k)
		}
	}
}

func TestSubtitleOpacity(t *testing.T) {
	tests := []struct{ elapsed, want float64 }{
		{0, 0},
		{0.25, 0.5},
		{0.5, 1},
		{3, 1},
	}
	for _, tt := range tests {
		if got := SubtitleOpacity(tt.elapsed); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("SubtitleOpacity(%v) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}
}

func solid(c color.Color, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		r, g, b, a := c.RGBA()
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8)
	}
	return img
}

func pixel(c *Canvas, x, y int) color.RGBA {
	var out color.RGBA
	c.Paint(func(dst *image.RGBA) { out = dst.RGBAAt(x, y) })
	return out
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	f, err := LoadFont("")
	if err != nil {
		t.Fatal(err)
	}
	subs, err := NewSubtitles(f, false)
	if err != nil {
		t.Fatal(err)
	}
	return NewRenderer(subs, &effects.DefaultEffect{})
}

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func TestRenderSceneFrame(t *testing.T) {
	r := newTestRenderer(t)
	c := NewCanvas(1280, 720)

	r.RenderSceneFrame(c, solid(red, 400, 300), "hello", 1.0, 2.0, 0)
	if p := pixel(c, 5, 5); p.R < 250 || p.B != 0 {
		t.Errorf("Expected the image to cover the corner, got %v", p)
	}
}

func TestRenderSceneFrameWithoutImage(t *testing.T) {
	r := newTestRenderer(t)
	c := NewCanvas(1280, 720)

	r.RenderSceneFrame(c, nil, "the subtitle stays", 1.0, 3.0, 1)

	if p := pixel(c, 5, 5); p != (color.RGBA{A: 255}) {
		t.Errorf("Expected a black background, got %v", p)
	}

	lit := 0
	c.Paint(func(dst *image.RGBA) {
		for y := 720 - 160; y < 720; y++ {
			for x := 0; x < 1280; x++ {
				if dst.RGBAAt(x, y).R > 200 {
					lit++
				}
			}
		}
	})
	if lit == 0 {
		t.Error("Expected subtitle pixels over the empty background")
	}
}

func TestRenderTransitionFrame(t *testing.T) {
	r := newTestRenderer(t)
	c := NewCanvas(1280, 720)
	a, b := solid(red, 320, 180), solid(blue, 320, 180)

	r.RenderTransitionFrame(c, a, b, 0)
	if p := pixel(c, 640, 360); p.R < 250 || p.B != 0 {
		t.Errorf("progress 0: expected scene A, got %v", p)
	}

	r.RenderTransitionFrame(c, a, b, 1)
	if p := pixel(c, 640, 360); p.B < 250 || p.R != 0 {
		t.Errorf("progress 1: expected scene B, got %v", p)
	}

	r.RenderTransitionFrame(c, a, b, 0.5)
	left, right := pixel(c, 100, 360), pixel(c, 1000, 360)
	if left.R == 0 || left.R >= 255 || left.B != 0 {
		t.Errorf("progress 0.5: expected darkened scene A on the left, got %v", left)
	}
	if right.B < 250 {
		t.Errorf("progress 0.5: expected scene B on the right, got %v", right)
	}
	shadow := pixel(c, 639, 360)
	if shadow.R >= left.R {
		t.Errorf("Expected the shadow strip to be darker than scene A (%v vs %v)", shadow, left)
	}
}

func TestRenderOutroFrame(t *testing.T) {
	r := newTestRenderer(t)
	card, err := NewEndCard("https://example.com/s/42", EndCardSize(1280, 720))
	if err != nil {
		t.Fatalf("NewEndCard failed: %v", err)
	}
	if card.Bounds().Dx() != 180 {
		t.Errorf("Expected a 180px card, got %d", card.Bounds().Dx())
	}
	r.EndCard = card
	c := NewCanvas(1280, 720)

	r.RenderOutroFrame(c, solid(blue, 100, 100), 0)
	if p := pixel(c, 10, 10); p.B < 250 {
		t.Errorf("progress 0: expected the image, got %v", p)
	}

	white := false
	c.Paint(func(dst *image.RGBA) {
		for y := 500; y < 720 && !white; y++ {
			for x := 1060; x < 1280; x++ {
				if p := dst.RGBAAt(x, y); p.R > 250 && p.G > 250 {
					white = true
					break
				}
			}
		}
	})
	if !white {
		t.Error("Expected the end card in the bottom-right corner")
	}

	r.RenderOutroFrame(c, solid(blue, 100, 100), 1)
	if p := pixel(c, 10, 10); p != (color.RGBA{A: 255}) {
		t.Errorf("progress 1: expected black, got %v", p)
	}

	r.RenderSceneFrame(c, solid(red, 10, 10), "", 1, 1, 0)
	r.RenderBlackFrame(c)
	if p := pixel(c, 640, 360); p != (color.RGBA{A: 255}) {
		t.Errorf("Expected black frame, got %v", p)
	}
}

func TestCanvasSnapshot(t *testing.T) {
	c := NewCanvas(4, 2)
	c.Paint(func(dst *image.RGBA) { dst.SetRGBA(1, 1, red) })

	snap := image.NewRGBA(c.Bounds())
	c.Snapshot(snap)
	if snap.RGBAAt(1, 1) != red {
		t.Errorf("Snapshot lost pixel: %v", snap.RGBAAt(1, 1))
	}

	c.Paint(func(dst *image.RGBA) { dst.SetRGBA(1, 1, blue) })
	if snap.RGBAAt(1, 1) != red {
		t.Error("Snapshot must not alias the canvas")
	}
}

func TestPrepareImage(t *testing.T) {
	tests := []struct {
		name         string
		img          image.Image
		wantW, wantH int
	}{
		{"nil", nil, 0, 0},
		{"empty", image.NewRGBA(image.Rect(0, 0, 0, 0)), 0, 0},
		// cover = max(72/2000, 128/1500), then ×1.35 for the outro zoom
		{"large photo shrinks", solid(red, 2000, 1500), 231, 173},
		{"small gray converted", image.NewGray(image.Rect(0, 0, 10, 10)), 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PrepareImage(tt.img, 72, 128)
			if tt.wantW == 0 {
				if got != nil {
					t.Errorf("Expected nil, got %T", got)
				}
				return
			}
			rgba, ok := got.(*image.RGBA)
			if !ok {
				t.Fatalf("Expected *image.RGBA, got %T", got)
			}
			if b := rgba.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantW, tt.wantH, b.Dx(), b.Dy())
			}
		})
	}
}

func TestPreparedImageStillCovers(t *testing.T) {
	r := newTestRenderer(t)
	c := NewCanvas(72, 128)
	img := PrepareImage(solid(red, 2000, 1500), 72, 128)

	r.RenderSceneFrame(c, img, "", 1.0, 2.0, 0)
	for _, pt := range []image.Point{{0, 0}, {71, 0}, {0, 127}, {71, 127}} {
		if p := pixel(c, pt.X, pt.Y); p.R < 200 {
			t.Errorf("Corner %v not covered: %v", pt, p)
		}
	}
}
