package system

import (
	"image"
	"sync"
)

// FramePool переиспользует кадры *image.RGBA одного размера между захватом
// холста и записью в энкодер, снижая нагрузку на GC при 60 кадрах в секунду.
type FramePool struct {
	rect image.Rectangle
	pool sync.Pool
}

func NewFramePool(rect image.Rectangle) *FramePool {
	p := &FramePool{rect: rect}
	p.pool.New = func() interface{} {
		return image.NewRGBA(rect)
	}
	return p
}

// Get возвращает кадр из пула или создает новый.
func (p *FramePool) Get() *image.RGBA {
	return p.pool.Get().(*image.RGBA)
}

// Put возвращает кадр в пул. Кадры другого размера отбрасываются.
func (p *FramePool) Put(img *image.RGBA) {
	if img == nil || img.Rect != p.rect {
		return
	}
	p.pool.Put(img)
}
