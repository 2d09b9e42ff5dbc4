package renderer

import (
	"fmt"
	"image"

	"github.com/skip2/go-qrcode"

	xdraw "golang.org/x/image/draw"
)

// NewEndCard renders a QR code for url, size pixels square.
func NewEndCard(url string, size int) (image.Image, error) {
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}
	return q.Image(size), nil
}

// EndCardSize picks a QR size that reads well on both orientations.
func EndCardSize(width, height int) int {
	return min(width, height) / 4
}

// drawEndCard places the card in the bottom-right corner.
func drawEndCard(dst *image.RGBA, card image.Image) {
	cb := card.Bounds()
	margin := min(dst.Rect.Dx(), dst.Rect.Dy()) / 18
	r := image.Rect(
		dst.Rect.Max.X-margin-cb.Dx(),
		dst.Rect.Max.Y-margin-cb.Dy(),
		dst.Rect.Max.X-margin,
		dst.Rect.Max.Y-margin,
	)
	xdraw.Draw(dst, r, card, cb.Min, xdraw.Over)
}
