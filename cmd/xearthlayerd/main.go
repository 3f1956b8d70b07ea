// Command xearthlayerd wires the tile production engine and exposes its
// Prometheus telemetry over HTTP. CLI flag/env parsing, config file IO, and
// the FUSE kernel mount itself are out of scope; this binary builds the
// pipeline from config.Default() alone.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quay/zlog"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	xearthlayer "github.com/xearthlayer/xearthlayer"
	"github.com/xearthlayer/xearthlayer/cache"
	"github.com/xearthlayer/xearthlayer/coalescer"
	"github.com/xearthlayer/xearthlayer/config"
	"github.com/xearthlayer/xearthlayer/daemon"
	"github.com/xearthlayer/xearthlayer/encoder"
	execpkg "github.com/xearthlayer/xearthlayer/executor"
	"github.com/xearthlayer/xearthlayer/fuseadapter"
	"github.com/xearthlayer/xearthlayer/orchestrator"
	"github.com/xearthlayer/xearthlayer/prefetch"
	"github.com/xearthlayer/xearthlayer/provider"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, NoColor: true}).
		With().Timestamp().Caller().Logger()
	zlog.Set(&log)

	tp := newTracerProvider()
	otel.SetTracerProvider(tp)

	cfg := config.Default()

	fetcher := newFetcher(cfg)

	chunkCache, err := cache.NewDisk(ctx, cfg.Cache.Directory, string(cfg.Provider.Type), cfg.Cache.DiskSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open disk chunk cache")
	}
	tileCache := cache.NewMemory(cfg.Cache.MemorySize)

	go cache.RunGC(ctx, chunkCache, cfg.Cache.GCInterval)

	orch := orchestrator.New(fetcher, chunkCache)
	enc := encoder.New(encoder.Config{
		Format:      mapFormat(cfg.Texture.Format),
		MipmapCount: cfg.Texture.MipmapCount,
	})

	reg := prometheus.NewRegistry()
	exec := execpkg.New(reg, execpkg.Options{
		Workers:        cfg.Generation.Threads,
		NetworkPermits: cfg.Resources.Network,
		DiskIOPermits:  cfg.Resources.DiskIO,
		CPUPermits:     cfg.Resources.CPU,
	})
	coal := coalescer.New(exec.NoteCoalesced)
	d := daemon.New(daemon.Options{Workers: cfg.Generation.Threads, DownloadTimeout: cfg.Download.Timeout}, exec, coal, orch, enc, tileCache)

	encCfg := xearthlayer.EncoderConfig{Format: string(cfg.Texture.Format), MipmapCount: cfg.Texture.MipmapCount}
	adapter := fuseadapter.New(d, enc, encCfg)
	_ = adapter // handed off to the FUSE kernel binding, which is out of scope here.

	coord := prefetch.New(prefetch.Options{MaxTilesPerCycle: cfg.Prefetch.MaxTilesPerCycle}, d, tileCache)
	telemetry := make(chan prefetch.AircraftState)
	go coord.Run(ctx, telemetry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:        "127.0.0.1:9090",
		Handler:     mux,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		d.Shutdown()
		exec.Shutdown()
		tileCache.Shutdown()
		chunkCache.Shutdown()
		close(telemetry)
		srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("tracer provider shutdown")
		}
	}()

	zlog.Info(ctx).Str("addr", srv.Addr).Msg("starting telemetry http server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("telemetry http server failed")
	}
}

func newFetcher(cfg *config.Config) provider.Fetcher {
	switch cfg.Provider.Type {
	case config.ProviderBing:
		return provider.NewBing(provider.BingOptions{
			URLTemplate: "https://ecn.t0.tiles.virtualearth.net/tiles/a{quadkey}.jpeg?g=1",
			APIKey:      cfg.Provider.APIKey,
			MaxZoomVal:  23,
			Timeout:     cfg.Download.Timeout,
		})
	default:
		return provider.NewXYZ(provider.XYZOptions{
			URLTemplate: "https://tile.example.invalid/{z}/{x}/{y}.jpg?key={key}",
			APIKey:      cfg.Provider.APIKey,
			MaxZoomVal:  23,
			Timeout:     cfg.Download.Timeout,
		})
	}
}

// newTracerProvider builds the SDK provider that records the spans
// daemon.handle starts. No exporter is attached here (that choice belongs
// to whoever embeds this binary); AlwaysSample keeps every span live so an
// exporter can be wired in later without touching the sampling decision.
func newTracerProvider() *sdktrace.TracerProvider {
	res, err := sdkresource.Merge(sdkresource.Default(),
		sdkresource.NewSchemaless(attribute.String("service.name", "xearthlayerd")))
	if err != nil {
		res = sdkresource.Default()
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	)
}

func mapFormat(f config.TextureFormat) encoder.Format {
	if f == config.FormatBC3 {
		return encoder.BC3
	}
	return encoder.BC1
}
