package source

import (
	"context"
	"log"
	"sync"

	"github.com/ivlev/storyreel/internal/story"
	"golang.org/x/sync/errgroup"
)

// Asset is the decoded visual of one scene. Audio is decoded later, just
// before the scene plays.
type Asset struct {
	SequenceIndex int
	Image         ImageResult
}

// Loader preloads scene images in parallel.
type Loader struct {
	Workers int
	Decode  func([]byte) ImageResult
}

func NewLoader(workers int) *Loader {
	if workers <= 0 {
		workers = 1
	}
	return &Loader{Workers: workers, Decode: DecodeImage}
}

// Preload decodes every scene image and returns one Asset per scene, in scene
// order. onProgress receives the number of finished images; calls are
// serialized and strictly increasing.
func (l *Loader) Preload(ctx context.Context, scenes []story.Scene, onProgress func(done, total int)) ([]Asset, error) {
	assets := make([]Asset, len(scenes))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.Workers)

	for i, scene := range scenes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res := l.Decode(scene.Image)
			if !res.OK() {
				log.Printf("[!] Scene %d: image unavailable, rendering without background: %v", scene.SequenceIndex, res.Reason)
			}
			assets[i] = Asset{SequenceIndex: scene.SequenceIndex, Image: res}

			mu.Lock()
			done++
			if onProgress != nil {
				onProgress(done, len(scenes))
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return assets, nil
}
