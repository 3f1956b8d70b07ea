package fuseadapter

import (
	"context"
	"sync"
	"sync/atomic"

	xearthlayer "github.com/xearthlayer/xearthlayer"
	"github.com/xearthlayer/xearthlayer/daemon"
	"github.com/xearthlayer/xearthlayer/encoder"
)

// Attr is the synthesized attribute set a FUSE binding would translate into
// its own stat struct.
type Attr struct {
	Size int64
}

// Handle identifies one open file, scoped to a single mounted path.
type Handle uint64

// Backend is the callback contract a FUSE kernel binding would drive.
// lookup/getattr never block on production; read produces the DDS texture
// on first access and serves subsequent reads from the buffer that first
// read captured.
type Backend interface {
	Lookup(ctx context.Context, p string) (Attr, error)
	GetAttr(ctx context.Context, p string) (Attr, error)
	Open(ctx context.Context, p string) (Handle, error)
	Read(ctx context.Context, fh Handle, offset int64, size int) ([]byte, error)
	Release(ctx context.Context, fh Handle) error
}

type openFile struct {
	tile xearthlayer.TileCoord
	cfg  xearthlayer.EncoderConfig
	mu   sync.Mutex
	buf  []byte // nil until the first Read produces the full texture
}

// Adapter implements Backend for `.dds` paths under the mounted tree by
// driving the Executor Daemon. Non-DDS paths are the mount's job to pass
// through to the real source directory untouched; this Adapter only
// handles the synthesized `.dds` half of §4.I.
type Adapter struct {
	daemon *daemon.Daemon
	enc    *encoder.Encoder
	cfg    xearthlayer.EncoderConfig

	nextHandle atomic.Uint64
	mu         sync.Mutex
	open       map[Handle]*openFile
}

// New builds an Adapter that produces DDS textures via d using enc's
// configured format.
func New(d *daemon.Daemon, enc *encoder.Encoder, cfg xearthlayer.EncoderConfig) *Adapter {
	return &Adapter{
		daemon: d,
		enc:    enc,
		cfg:    cfg,
		open:   make(map[Handle]*openFile),
	}
}

func (a *Adapter) Lookup(ctx context.Context, p string) (Attr, error) {
	return a.GetAttr(ctx, p)
}

// GetAttr synthesizes attributes without producing the texture: size is
// always the full 4096x4096 encoded size for the configured format, since
// every DDS this mount serves is that one fixed resolution.
func (a *Adapter) GetAttr(ctx context.Context, p string) (Attr, error) {
	if _, err := ParseDDSPath(p); err != nil {
		return Attr{}, err
	}
	return Attr{Size: int64(a.enc.ExpectedSize(4096, 4096))}, nil
}

func (a *Adapter) Open(ctx context.Context, p string) (Handle, error) {
	tile, err := ParseDDSPath(p)
	if err != nil {
		return 0, err
	}
	fh := Handle(a.nextHandle.Add(1))
	a.mu.Lock()
	a.open[fh] = &openFile{tile: tile, cfg: a.cfg}
	a.mu.Unlock()
	return fh, nil
}

// Read produces the full DDS texture on the handle's first call (via the
// Executor Daemon) and serves every call, first or not, from the buffer.
func (a *Adapter) Read(ctx context.Context, fh Handle, offset int64, size int) ([]byte, error) {
	a.mu.Lock()
	of, ok := a.open[fh]
	a.mu.Unlock()
	if !ok {
		return nil, NotFound("Read")
	}

	of.mu.Lock()
	defer of.mu.Unlock()
	if of.buf == nil {
		req := &daemon.Request{
			Tile:     of.tile,
			Cfg:      of.cfg,
			Origin:   xearthlayer.OriginFuse,
			Priority: xearthlayer.OnDemand,
			Ctx:      ctx,
			Reply:    make(chan daemon.Response, 1),
		}
		a.daemon.Submit(req)
		resp := <-req.Reply
		if resp.Err != nil {
			return nil, WrapError("Read", resp.Err)
		}
		of.buf = resp.Bytes
	}

	if offset < 0 || offset >= int64(len(of.buf)) {
		return nil, nil
	}
	end := offset + int64(size)
	if end > int64(len(of.buf)) {
		end = int64(len(of.buf))
	}
	return of.buf[offset:end], nil
}

func (a *Adapter) Release(ctx context.Context, fh Handle) error {
	a.mu.Lock()
	delete(a.open, fh)
	a.mu.Unlock()
	return nil
}
