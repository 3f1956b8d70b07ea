package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	xearthlayer "github.com/xearthlayer/xearthlayer"
	"github.com/xearthlayer/xearthlayer/internal/httputil"
)

// BingOptions configures the Bing Maps quadkey-addressed provider.
type BingOptions struct {
	// URLTemplate contains the literal substring "{quadkey}" and optionally
	// "{key}".
	URLTemplate string
	APIKey      string
	MaxZoomVal  int
	Timeout     time.Duration
	RateLimit   rate.Limit
}

// Bing is a Fetcher for Bing Maps' quadkey tile addressing scheme.
type Bing struct {
	opts    BingOptions
	client  *http.Client
	limiter *rate.Limiter
}

func NewBing(opts BingOptions) *Bing {
	p := &Bing{opts: opts, client: newHTTPClient(opts.Timeout)}
	if opts.RateLimit > 0 {
		p.limiter = rate.NewLimiter(opts.RateLimit, int(opts.RateLimit)+1)
	}
	return p
}

func (p *Bing) MaxZoom() int { return p.opts.MaxZoomVal }

// quadKey converts (row, col, zoom) in provider space to a Bing quadkey
// string, the canonical tile-to-quadkey algorithm.
func quadKey(row, col uint32, zoom int) string {
	var sb strings.Builder
	sb.Grow(zoom)
	for i := zoom; i > 0; i-- {
		digit := byte('0')
		mask := uint32(1) << (i - 1)
		if col&mask != 0 {
			digit++
		}
		if row&mask != 0 {
			digit += 2
		}
		sb.WriteByte(digit)
	}
	return sb.String()
}

func (p *Bing) url(chunk xearthlayer.ChunkCoord) string {
	qk := quadKey(chunk.ProviderRow(), chunk.ProviderCol(), chunk.ProviderZoom())
	replacer := strings.NewReplacer("{quadkey}", qk, "{key}", p.opts.APIKey)
	return replacer.Replace(p.opts.URLTemplate)
}

func (p *Bing) Fetch(ctx context.Context, chunk xearthlayer.ChunkCoord) ([]byte, error) {
	const op = "provider.bing.fetch"
	if err := checkZoom(chunk, p.opts.MaxZoomVal); err != nil {
		return nil, err
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, xearthlayer.NewError(op, xearthlayer.KindCancelled, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url(chunk), nil)
	if err != nil {
		return nil, xearthlayer.NewError(op, xearthlayer.KindPermanent, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, xearthlayer.NewError(op, xearthlayer.KindTransient, err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckResponse(resp, http.StatusOK); err != nil {
		return nil, xearthlayer.NewError(op, httpStatusKind(resp.StatusCode), fmt.Errorf("http %d: %w", resp.StatusCode, err))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xearthlayer.NewError(op, xearthlayer.KindCorrupt, err)
	}
	if len(body) == 0 {
		return nil, xearthlayer.NewError(op, xearthlayer.KindCorrupt, fmt.Errorf("empty chunk body for %s", chunk))
	}
	return body, nil
}
