package encoder

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
)

// compressLevel writes one mip level's block-compressed data for img,
// iterating 4x4 blocks in row-major order. Edge blocks on a non-multiple-of-4
// image are padded by clamping to the last valid pixel.
func compressLevel(buf *bytes.Buffer, img *image.RGBA, format Format) error {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	bw, bh := (w+3)/4, (h+3)/4

	var block [16]color.RGBA
	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			readBlock(img, bx*4, by*4, &block)
			if format == BC3 {
				buf.Write(compressAlphaBlock(&block))
			}
			buf.Write(compressColorBlock(&block, format))
		}
	}
	return nil
}

// readBlock fills block with the 4x4 pixels starting at (x0,y0), clamping
// reads outside img's bounds to the nearest edge pixel.
func readBlock(img *image.RGBA, x0, y0 int, block *[16]color.RGBA) {
	b := img.Bounds()
	for dy := 0; dy < 4; dy++ {
		y := y0 + dy
		if y >= b.Max.Y {
			y = b.Max.Y - 1
		}
		for dx := 0; dx < 4; dx++ {
			x := x0 + dx
			if x >= b.Max.X {
				x = b.Max.X - 1
			}
			r, g, bl, a := img.At(x, y).RGBA()
			block[dy*4+dx] = color.RGBA{
				R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: uint8(a >> 8),
			}
		}
	}
}

// rgb565 packs an 8-bit RGB triple into the 5:6:5 format BC1/BC3 endpoints
// use.
func rgb565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

func unpack565(v uint16) (r, g, b uint8) {
	r = uint8((v >> 11 & 0x1F) * 255 / 31)
	g = uint8((v >> 5 & 0x3F) * 255 / 63)
	b = uint8((v & 0x1F) * 255 / 31)
	return
}

// compressColorBlock produces the 8-byte BC1-shaped color block: two 565
// endpoints plus 16 2-bit indices, using a min/max bounding-box endpoint
// choice (the standard "range fit" approximation).
func compressColorBlock(block *[16]color.RGBA, format Format) []byte {
	var minR, minG, minB uint8 = 255, 255, 255
	var maxR, maxG, maxB uint8

	for _, p := range block {
		if p.R < minR {
			minR = p.R
		}
		if p.G < minG {
			minG = p.G
		}
		if p.B < minB {
			minB = p.B
		}
		if p.R > maxR {
			maxR = p.R
		}
		if p.G > maxG {
			maxG = p.G
		}
		if p.B > maxB {
			maxB = p.B
		}
	}

	c0 := rgb565(maxR, maxG, maxB)
	c1 := rgb565(minR, minG, minB)
	// BC3's color part is always 4-color interpolated (no 1-bit-alpha
	// punch-through mode); BC1 opaque blocks use the same 4-color mode
	// whenever c0 > c1, which a solid or near-solid block can violate, so
	// nudge c1 down to force the 4-color branch.
	if c0 <= c1 {
		if c1 > 0 {
			c1--
		} else {
			c0++
		}
	}

	r0, g0, b0 := unpack565(c0)
	r1, g1, b1 := unpack565(c1)
	palette := [4][3]int{
		{int(r0), int(g0), int(b0)},
		{int(r1), int(g1), int(b1)},
		{(2*int(r0) + int(r1)) / 3, (2*int(g0) + int(g1)) / 3, (2*int(b0) + int(b1)) / 3},
		{(int(r0) + 2*int(r1)) / 3, (int(g0) + 2*int(g1)) / 3, (int(b0) + 2*int(b1)) / 3},
	}

	var indices uint32
	for i, p := range block {
		best, bestDist := 0, 1<<30
		for pi, c := range palette {
			dr := int(p.R) - c[0]
			dg := int(p.G) - c[1]
			db := int(p.B) - c[2]
			dist := dr*dr + dg*dg + db*db
			if dist < bestDist {
				best, bestDist = pi, dist
			}
		}
		indices |= uint32(best) << uint(i*2)
	}

	out := make([]byte, 8)
	binary.LittleEndian.PutUint16(out[0:2], c0)
	binary.LittleEndian.PutUint16(out[2:4], c1)
	binary.LittleEndian.PutUint32(out[4:8], indices)
	return out
}

// compressAlphaBlock produces BC3's 8-byte interpolated-alpha block: two
// 8-bit endpoints plus 16 3-bit indices into an 8-step (or, when the block
// is uniform, implicitly degenerate) ramp.
func compressAlphaBlock(block *[16]color.RGBA) []byte {
	var minA, maxA uint8 = 255, 0
	for _, p := range block {
		if p.A < minA {
			minA = p.A
		}
		if p.A > maxA {
			maxA = p.A
		}
	}

	a0, a1 := maxA, minA
	if a0 == a1 {
		if a1 > 0 {
			a1--
		} else {
			a0++
		}
	}

	ramp := [8]int{int(a0), int(a1)}
	for i := 1; i <= 6; i++ {
		ramp[1+i] = (int(a0)*(7-i) + int(a1)*i) / 7
	}

	var bits uint64
	for i, p := range block {
		best, bestDist := 0, 1<<30
		for ai, a := range ramp {
			d := int(p.A) - a
			if d < 0 {
				d = -d
			}
			if d < bestDist {
				best, bestDist = ai, d
			}
		}
		bits |= uint64(best) << uint(i*3)
	}

	out := make([]byte, 8)
	out[0] = a0
	out[1] = a1
	for i := 0; i < 6; i++ {
		out[2+i] = byte(bits >> uint(i*8))
	}
	return out
}
