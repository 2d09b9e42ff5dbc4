package renderer

import (
	"image"
	"image/color"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// Canvas is the shared render target. The timeline paints it and the encoder
// samples it concurrently; the mutex makes every sample a complete frame.
type Canvas struct {
	mu  sync.Mutex
	img *image.RGBA
}

func NewCanvas(width, height int) *Canvas {
	c := &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
	c.Paint(fillBlack)
	return c
}

func (c *Canvas) Bounds() image.Rectangle {
	return c.img.Rect
}

// Paint runs fn with exclusive access to the pixels.
func (c *Canvas) Paint(fn func(dst *image.RGBA)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.img)
}

// Snapshot copies the current frame into dst, which must have the canvas bounds.
func (c *Canvas) Snapshot(dst *image.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(dst.Pix, c.img.Pix)
}

var black = image.NewUniform(color.Black)

func fillBlack(dst *image.RGBA) {
	xdraw.Draw(dst, dst.Rect, black, image.Point{}, xdraw.Src)
}
