package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	xearthlayer "github.com/xearthlayer/xearthlayer"
	"github.com/xearthlayer/xearthlayer/internal/httputil"
)

// XYZOptions configures an xyz-style tile provider (Google, ArcGIS, USGS all
// share this URL scheme: {z} {x} {y}).
type XYZOptions struct {
	// URLTemplate contains the literal substrings "{z}", "{x}", "{y}" and
	// optionally "{key}".
	URLTemplate string
	APIKey      string
	MaxZoomVal  int
	Timeout     time.Duration
	// RateLimit, if non-zero, caps requests/sec to this provider.
	RateLimit rate.Limit
}

// XYZ is a Fetcher for providers addressed by {z}/{x}/{y} URL templates
// (Google, ArcGIS, USGS).
type XYZ struct {
	opts    XYZOptions
	client  *http.Client
	limiter *rate.Limiter
}

// NewXYZ constructs an XYZ provider. No templating library in the example
// pack does URL substitution this narrow; strings.NewReplacer is the
// stdlib-justified tool (see DESIGN.md).
func NewXYZ(opts XYZOptions) *XYZ {
	p := &XYZ{
		opts:   opts,
		client: newHTTPClient(opts.Timeout),
	}
	if opts.RateLimit > 0 {
		p.limiter = rate.NewLimiter(opts.RateLimit, int(opts.RateLimit)+1)
	}
	return p
}

func (p *XYZ) MaxZoom() int { return p.opts.MaxZoomVal }

func (p *XYZ) url(chunk xearthlayer.ChunkCoord) string {
	replacer := strings.NewReplacer(
		"{z}", strconv.Itoa(chunk.ProviderZoom()),
		"{x}", strconv.FormatUint(uint64(chunk.ProviderCol()), 10),
		"{y}", strconv.FormatUint(uint64(chunk.ProviderRow()), 10),
		"{key}", p.opts.APIKey,
	)
	return replacer.Replace(p.opts.URLTemplate)
}

func (p *XYZ) Fetch(ctx context.Context, chunk xearthlayer.ChunkCoord) ([]byte, error) {
	const op = "provider.xyz.fetch"
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
