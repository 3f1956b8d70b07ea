// Package encoder implements the Texture Encoder: compressing an RGBA image
// into a DDS file with BC1 or BC3 block compression and a mipmap chain.
package encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// Format selects the DXT/BC block-compression variant.
type Format int

const (
	BC1 Format = iota // DXT1, 8 bytes/block, no interpolated alpha
	BC3               // DXT5, 16 bytes/block, interpolated alpha
)

func (f Format) bytesPerBlock() int {
	if f == BC3 {
		return 16
	}
	return 8
}

func (f Format) fourCC() [4]byte {
	if f == BC3 {
		return [4]byte{'D', 'X', 'T', '5'}
	}
	return [4]byte{'D', 'X', 'T', '1'}
}

// Config is the Texture Encoder's configuration: §4.C's
// {format, mipmap_count}.
type Config struct {
	Format      Format
	MipmapCount int
}

// Encoder compresses RGBA images to DDS bytes per Config. Encode and
// ExpectedSize share mipChain so the two can never disagree about the
// output length — the §8 universal invariant this type exists to satisfy.
type Encoder struct {
	cfg Config
}

// New constructs an Encoder. MipmapCount of 0 means "base level only".
func New(cfg Config) *Encoder {
	if cfg.MipmapCount < 1 {
		cfg.MipmapCount = 1
	}
	return &Encoder{cfg: cfg}
}

type dims struct{ w, h int }

// mipChain returns the w,h of each of count mip levels, level 0 being the
// base image: w_i = max(1, w/2^i), h_i = max(1, h/2^i).
func mipChain(w, h, count int) []dims {
	out := make([]dims, count)
	for i := 0; i < count; i++ {
		lw := w >> uint(i)
		if lw < 1 {
			lw = 1
		}
		lh := h >> uint(i)
		if lh < 1 {
			lh = 1
		}
		out[i] = dims{lw, lh}
	}
	return out
}

// blocks is ceil(w/4) * ceil(h/4), the number of 4x4 compression blocks
// covering a w x h image.
func blocks(w, h int) int {
	bw := (w + 3) / 4
	bh := (h + 3) / 4
	return bw * bh
}

const headerSize = 128 // 4-byte "DDS " magic + 124-byte DDS_HEADER

// ExpectedSize returns the exact encoded length for a w x h image at this
// Encoder's configuration, without doing any compression work — used by
// FUSE getattr so size() never has to produce bytes.
func (e *Encoder) ExpectedSize(w, h int) int {
	total := headerSize
	bpb := e.cfg.Format.bytesPerBlock()
	for _, d := range mipChain(w, h, e.cfg.MipmapCount) {
		total += blocks(d.w, d.h) * bpb
	}
	return total
}

// Encode compresses rgba into a complete DDS file: header, base level, then
// successively halved mip levels down to Config.MipmapCount levels.
func (e *Encoder) Encode(rgba *image.RGBA) ([]byte, error) {
	w, h := rgba.Bounds().Dx(), rgba.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return nil, xearthlayer.NewError("encoder.encode", xearthlayer.KindPermanent, xearthlayer.ErrInvalidDimensions)
	}

	chain := mipChain(w, h, e.cfg.MipmapCount)
	buf := bytes.NewBuffer(make([]byte, 0, e.ExpectedSize(w, h)))
	writeHeader(buf, w, h, e.cfg.Format, len(chain))

	level := rgba
	for i, d := range chain {
		if i > 0 {
			level = resize(level, d.w, d.h)
		}
		if err := compressLevel(buf, level, e.cfg.Format); err != nil {
			return nil, fmt.Errorf("encoder: mip level %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// writeHeader emits the 4-byte magic plus the 124-byte DDS_HEADER structure
// for an uncompressed-mipmap-chain BC1/BC3 texture.
func writeHeader(buf *bytes.Buffer, w, h int, format Format, mipCount int) {
	const (
		ddsdCaps        = 0x1
		ddsdHeight      = 0x2
		ddsdWidth       = 0x4
		ddsdPixelFormat = 0x1000
		ddsdMipmapCount = 0x20000
		ddsdLinearSize  = 0x80000

		ddpfFourCC = 0x4

		ddscapsComplex = 0x8
		ddscapsTexture = 0x1000
		ddscapsMipmap  = 0x400000
	)

	buf.WriteString("DDS ")

	var hdr [124]byte
	le := binary.LittleEndian
	le.PutUint32(hdr[0:4], 124) // dwSize
	flags := uint32(ddsdCaps | ddsdHeight | ddsdWidth | ddsdPixelFormat | ddsdLinearSize)
	if mipCount > 1 {
		flags |= ddsdMipmapCount
	}
	le.PutUint32(hdr[4:8], flags)
	le.PutUint32(hdr[8:12], uint32(h))  // dwHeight
	le.PutUint32(hdr[12:16], uint32(w)) // dwWidth
	le.PutUint32(hdr[16:20], uint32(blocks(w, h)*format.bytesPerBlock())) // dwPitchOrLinearSize
	le.PutUint32(hdr[20:24], 0)                                          // dwDepth
	le.PutUint32(hdr[24:28], uint32(mipCount))                           // dwMipMapCount
	// dwReserved1[11] left zero at hdr[28:72]

	// DDS_PIXELFORMAT at hdr[72:104]
	pf := hdr[72:104]
	le.PutUint32(pf[0:4], 32) // dwSize
	le.PutUint32(pf[4:8], ddpfFourCC)
	fourCC := format.fourCC()
	copy(pf[8:12], fourCC[:])
	// remaining RGB bitmask fields left zero: not used for compressed formats.

	capsFlags := uint32(ddscapsTexture)
	if mipCount > 1 {
		capsFlags |= ddscapsComplex | ddscapsMipmap
	}
	le.PutUint32(hdr[104:108], capsFlags) // dwCaps
	// dwCaps2/3/4, dwReserved2 left zero at hdr[108:124]

	buf.Write(hdr[:])
}
