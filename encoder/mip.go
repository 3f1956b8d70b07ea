package encoder

import (
	"image"

	"github.com/disintegration/gift"
)

// resize produces a w x h copy of src using linear resampling, the way
// MeKo-Christian-WaterColorMap's gift pipeline resamples map tile rasters —
// reused here instead of a hand-rolled box filter for mipmap generation.
func resize(src *image.RGBA, w, h int) *image.RGBA {
	g := gift.New(gift.Resize(w, h, gift.LinearResampling))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	g.Draw(dst, src)
	return dst
}
