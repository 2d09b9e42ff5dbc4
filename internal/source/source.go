package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gen2brain/go-fitz"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrNoImageData = errors.New("no image data")

// ImageResult is the tagged outcome of decoding one scene image.
// Exactly one of Image and Reason is set.
type ImageResult struct {
	Image  image.Image
	Reason error
}

func (r ImageResult) OK() bool {
	return r.Image != nil && r.Reason == nil
}

// Width and Height return the intrinsic pixel size, or 0 when decoding failed.
func (r ImageResult) Width() int {
	if r.Image == nil {
		return 0
	}
	return r.Image.Bounds().Dx()
}

func (r ImageResult) Height() int {
	if r.Image == nil {
		return 0
	}
	return r.Image.Bounds().Dy()
}

var pdfMagic = []byte("%PDF")

// DecodeImage turns arbitrary still-image bytes into a drawable image.
// PDF documents are rasterized from their first page.
func DecodeImage(data []byte) (res ImageResult) {
	if len(data) == 0 {
		return ImageResult{Reason: ErrNoImageData}
	}

	// Corrupt input can panic inside third-party decoders; that is still a
	// per-scene failure, not a render failure.
	defer func() {
		if r := recover(); r != nil {
			res = ImageResult{Reason: fmt.Errorf("decoder panic: %v", r)}
		}
	}()

	if bytes.HasPrefix(data, pdfMagic) {
		img, err := renderPDF(data)
		if err != nil {
			return ImageResult{Reason: fmt.Errorf("pdf: %w", err)}
		}
		return ImageResult{Image: img}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ImageResult{Reason: fmt.Errorf("decode image: %w", err)}
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return ImageResult{Reason: fmt.Errorf("empty %s image", format)}
	}
	return ImageResult{Image: img}
}

func renderPDF(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, errors.New("document has no pages")
	}
	return doc.Image(0)
}
