package renderer

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	xdraw "golang.org/x/image/draw"
)

// SubtitleLayout holds the subtitle metrics for one canvas orientation.
type SubtitleLayout struct {
	FontSize     float64
	LineHeight   float64
	Padding      float64
	BottomMargin float64
}

// LayoutFor returns the layout of widescreen or vertical canvases. Vertical
// canvases get a larger font and keep clear of the bottom UI chrome of
// mobile players.
func LayoutFor(vertical bool) SubtitleLayout {
	if vertical {
		return SubtitleLayout{FontSize: 40, LineHeight: 56, Padding: 20, BottomMargin: 220}
	}
	return SubtitleLayout{FontSize: 32, LineHeight: 46, Padding: 20, BottomMargin: 60}
}

// LoadFont parses an OpenType/TrueType file, or the embedded Go Bold face when
// path is empty.
func LoadFont(path string) (*opentype.Font, error) {
	data := gobold.TTF
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return f, nil
}

// Subtitles draws narration text over the bottom of a frame.
type Subtitles struct {
	Layout SubtitleLayout
	face   font.Face
}

func NewSubtitles(f *opentype.Font, vertical bool) (*Subtitles, error) {
	layout := LayoutFor(vertical)
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    layout.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("font face: %w", err)
	}
	return &Subtitles{Layout: layout, face: face}, nil
}

func (s *Subtitles) measure(text string) float64 {
	return fixedToFloat(font.MeasureString(s.face, text))
}

// MaxLineWidth is the wrap width for a canvas of the given width.
func (s *Subtitles) MaxLineWidth(canvasWidth int) float64 {
	return float64(canvasWidth) - 4*s.Layout.Padding
}

// Lines wraps text for a canvas of the given width.
func (s *Subtitles) Lines(text string, canvasWidth int) []string {
	return WrapText(text, s.MaxLineWidth(canvasWidth), s.measure)
}

// WrapText breaks text into lines no wider than maxWidth, one character at a
// time. A character wider than maxWidth still gets its own line, so the result
// always has at least one line and the lines concatenate back to text.
func WrapText(text string, maxWidth float64, measure func(string) float64) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); {
		_, size := utf8.DecodeRuneInString(text[i:])
		end := i + size
		if i > start && measure(text[start:end]) > maxWidth {
			lines = append(lines, text[start:i])
			start = i
		}
		i = end
	}
	return append(lines, text[start:])
}

// Draw renders the backdrop and the wrapped lines with the given opacity.
func (s *Subtitles) Draw(dst *image.RGBA, text string, opacity float64) {
	if opacity <= 0 {
		return
	}
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	l := s.Layout
	lines := s.Lines(text, w)

	blockHeight := float64(len(lines)) * l.LineHeight
	blockBottom := float64(h) - l.BottomMargin
	blockTop := blockBottom - blockHeight

	backdrop := image.Rect(int(l.Padding), int(blockTop-l.Padding), w-int(l.Padding), int(blockBottom+l.Padding))
	drawGradient(dst, backdrop.Intersect(dst.Rect), 0.35*opacity, 0.75*opacity)

	m := s.face.Metrics()
	ascent, descent := fixedToFloat(m.Ascent), fixedToFloat(m.Descent)
	baselineInBand := (l.LineHeight-(ascent+descent))/2 + ascent

	shadow := image.NewUniform(color.NRGBA{A: alpha8(0.8 * opacity)})
	fill := image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: alpha8(opacity)})

	for i := len(lines) - 1; i >= 0; i-- {
		bandTop := blockTop + float64(i)*l.LineHeight
		y := bandTop + baselineInBand
		x := (float64(w) - s.measure(lines[i])) / 2

		d := &font.Drawer{Dst: dst, Src: shadow, Face: s.face, Dot: floatPoint(x+2, y+2)}
		d.DrawString(lines[i])

		d.Src = fill
		d.Dot = floatPoint(x, y)
		d.DrawString(lines[i])
	}
}

// drawGradient fills r with black whose alpha goes from top to bottom.
func drawGradient(dst *image.RGBA, r image.Rectangle, top, bottom float64) {
	rows := r.Dy()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		t := 0.0
		if rows > 1 {
			t = float64(y-r.Min.Y) / float64(rows-1)
		}
		a := top + (bottom-top)*t
		row := image.Rect(r.Min.X, y, r.Max.X, y+1)
		xdraw.Draw(dst, row, image.NewUniform(color.NRGBA{A: alpha8(a)}), image.Point{}, xdraw.Over)
	}
}

func alpha8(a float64) uint8 {
	if a <= 0 {
		return 0
	}
	if a >= 1 {
		return 255
	}
	return uint8(a*255 + 0.5)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatPoint(x, y float64) fixed.Point26_6 {
	return fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)}
}
