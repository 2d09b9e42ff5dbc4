package renderer

import (
	"image"
	"image/color"
	"math"

	"github.com/ivlev/storyreel/internal/effects"
	"golang.org/x/image/math/f64"

	xdraw "golang.org/x/image/draw"
)

const (
	// SubtitleFadeIn is how long subtitles take to reach full opacity.
	SubtitleFadeIn = 0.5

	transitionDarken   = 0.6
	transitionShadow   = 0.5
	transitionShadowPx = 32
)

// Renderer paints scene, transition and outro frames onto a Canvas.
// A nil image is a scene whose visual failed to load: the background stays black.
type Renderer struct {
	Effect    effects.Effect
	Subtitles *Subtitles
	EndCard   image.Image
}

func NewRenderer(subs *Subtitles, eff effects.Effect) *Renderer {
	if eff == nil {
		eff = &effects.DefaultEffect{}
	}
	return &Renderer{Effect: eff, Subtitles: subs}
}

// CoverScale is the smallest scale at which an iw×ih image fully covers a cw×ch frame.
func CoverScale(iw, ih, cw, ch float64) float64 {
	return math.Max(cw/iw, ch/ih)
}

// SubtitleOpacity fades subtitles in linearly over the first half second.
func SubtitleOpacity(elapsed float64) float64 {
	return math.Min(elapsed/SubtitleFadeIn, 1)
}

// RenderSceneFrame paints one frame of a playing scene.
func (r *Renderer) RenderSceneFrame(c *Canvas, img image.Image, narration string, elapsed, duration float64, parity int) {
	scale := r.Effect.Scale(effects.FrameParams{Elapsed: elapsed, Duration: duration, Parity: parity})

	c.Paint(func(dst *image.RGBA) {
		fillBlack(dst)
		drawCover(dst, dst.Rect, img, scale, 0)
		if r.Subtitles != nil {
			r.Subtitles.Draw(dst, narration, SubtitleOpacity(elapsed))
		}
	})
}

// RenderTransitionFrame paints the push from scene a to scene b. a leaves to
// the left and darkens, b enters from the right edge with a shadow strip on
// its leading edge.
func (r *Renderer) RenderTransitionFrame(c *Canvas, a, b image.Image, progress float64) {
	progress = effects.Clamp01(progress)
	eased := effects.EaseInOutCubic(progress)

	c.Paint(func(dst *image.RGBA) {
		fillBlack(dst)
		w := float64(dst.Rect.Dx())
		edge := dst.Rect.Min.X + int(math.Round(w-w*eased))

		left := image.Rect(dst.Rect.Min.X, dst.Rect.Min.Y, edge, dst.Rect.Max.Y)
		drawCover(dst, left, a, effects.TransitionOutgoingScale, -w*eased)
		overlay(dst, left, transitionDarken*progress)

		for i := 0; i < transitionShadowPx; i++ {
			x := edge - transitionShadowPx + i
			strip := image.Rect(x, dst.Rect.Min.Y, x+1, dst.Rect.Max.Y).Intersect(left)
			overlay(dst, strip, transitionShadow*float64(i+1)/transitionShadowPx)
		}

		right := image.Rect(edge, dst.Rect.Min.Y, dst.Rect.Max.X, dst.Rect.Max.Y)
		drawCover(dst, right, b, effects.TransitionIncomingScale, w-w*eased)
	})
}

// RenderOutroFrame fades the last scene to black while slowly zooming in.
func (r *Renderer) RenderOutroFrame(c *Canvas, img image.Image, progress float64) {
	progress = effects.Clamp01(progress)

	c.Paint(func(dst *image.RGBA) {
		fillBlack(dst)
		drawCover(dst, dst.Rect, img, effects.OutroScale(progress), 0)
		if r.EndCard != nil {
			drawEndCard(dst, r.EndCard)
		}
		overlay(dst, dst.Rect, progress)
	})
}

func (r *Renderer) RenderBlackFrame(c *Canvas) {
	c.Paint(fillBlack)
}

// PrepareImage converts a decoded scene image once, before it is painted, into
// an *image.RGBA no larger than needed to cover a width×height canvas at the
// largest camera scale. Per-frame transforms then read a small RGBA source,
// which x/image/draw handles on its fast path.
func PrepareImage(img image.Image, width, height int) image.Image {
	if img == nil {
		return nil
	}
	sb := img.Bounds()
	iw, ih := float64(sb.Dx()), float64(sb.Dy())
	if iw == 0 || ih == 0 {
		return nil
	}

	k := CoverScale(iw, ih, float64(width), float64(height)) * effects.OutroEndScale
	if k >= 1 {
		// Апскейл делает покадровый transform; здесь только приводим к RGBA
		if rgba, ok := img.(*image.RGBA); ok {
			return rgba
		}
		dst := image.NewRGBA(image.Rect(0, 0, sb.Dx(), sb.Dy()))
		xdraw.Draw(dst, dst.Rect, img, sb.Min, xdraw.Src)
		return dst
	}

	dst := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(iw*k)), int(math.Ceil(ih*k))))
	xdraw.CatmullRom.Scale(dst, dst.Rect, img, sb, xdraw.Src, nil)
	return dst
}

// drawCover draws src cover-fitted to dst, multiplied by scale, centered and
// shifted horizontally by offsetX. Pixels outside clip are left untouched.
func drawCover(dst *image.RGBA, clip image.Rectangle, src image.Image, scale, offsetX float64) {
	clip = clip.Intersect(dst.Rect)
	if src == nil || clip.Empty() {
		return
	}
	sb := src.Bounds()
	iw, ih := float64(sb.Dx()), float64(sb.Dy())
	if iw == 0 || ih == 0 {
		return
	}
	cw, ch := float64(dst.Rect.Dx()), float64(dst.Rect.Dy())

	k := CoverScale(iw, ih, cw, ch) * scale
	tx := float64(dst.Rect.Min.X) + cw/2 + offsetX - k*(float64(sb.Min.X)+iw/2)
	ty := float64(dst.Rect.Min.Y) + ch/2 - k*(float64(sb.Min.Y)+ih/2)

	target := dst.SubImage(clip).(*image.RGBA)
	xdraw.ApproxBiLinear.Transform(target, f64.Aff3{k, 0, tx, 0, k, ty}, src, sb, xdraw.Over, nil)
}

// overlay darkens r with black at the given alpha.
func overlay(dst *image.RGBA, r image.Rectangle, a float64) {
	if a <= 0 || r.Empty() {
		return
	}
	xdraw.Draw(dst, r, image.NewUniform(color.NRGBA{A: alpha8(a)}), image.Point{}, xdraw.Over)
}
