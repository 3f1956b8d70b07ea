// Package config holds the explicit configuration struct every constructor
// in this module threads through, following the indexer.Options /
// libindex.Options pattern: no package-global state, only a struct plus a
// Default() convenience on top of it.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// ProviderType selects which chunk provider backs the mount.
type ProviderType string

const (
	ProviderBing    ProviderType = "bing"
	ProviderGoogle  ProviderType = "google"
	ProviderArcGIS  ProviderType = "arcgis"
	ProviderUSGS    ProviderType = "usgs"
)

// TextureFormat selects the DDS block-compression format.
type TextureFormat string

const (
	FormatBC1 TextureFormat = "BC1"
	FormatBC3 TextureFormat = "BC3"
)

// PrefetchMode overrides automatic throughput-based mode selection.
type PrefetchMode string

const (
	PrefetchAuto         PrefetchMode = "auto"
	PrefetchAggressive   PrefetchMode = "aggressive"
	PrefetchOpportunistic PrefetchMode = "opportunistic"
	PrefetchDisabled     PrefetchMode = "disabled"
)

// Config is the full set of runtime tunables. Every component constructor
// accepts the subset it needs directly; Config exists so a single call
// site (cmd/xearthlayerd) can build and thread it.
type Config struct {
	Provider struct {
		Type   ProviderType
		APIKey string
	}
	Texture struct {
		Format       TextureFormat
		MipmapCount  int
	}
	Download struct {
		Timeout     time.Duration
		Parallel    int
		MaxRetries  int
	}
	Cache struct {
		Directory   string
		MemorySize  int64
		DiskSize    int64
		GCInterval  time.Duration
	}
	Generation struct {
		Threads int
		Timeout time.Duration
	}
	Prefetch struct {
		Mode            PrefetchMode
		MaxTilesPerCycle int
	}
	Resources struct {
		Network int64
		DiskIO  int64
		CPU     int64
	}
}

// Default returns the documented default configuration. It is offered
// purely as a convenience on top of explicit construction — nothing in
// this module reads it implicitly.
func Default() *Config {
	c := &Config{}
	c.Provider.Type = ProviderBing
	c.Texture.Format = FormatBC1
	c.Texture.MipmapCount = 5
	c.Download.Timeout = 30 * time.Second
	c.Download.Parallel = 32
	c.Download.MaxRetries = 3
	c.Cache.Directory = defaultCacheDir()
	c.Cache.MemorySize = 2 << 30  // 2 GiB
	c.Cache.DiskSize = 20 << 30   // 20 GiB
	c.Cache.GCInterval = 60 * time.Second
	c.Generation.Threads = runtime.GOMAXPROCS(0)
	c.Generation.Timeout = 120 * time.Second
	c.Prefetch.Mode = PrefetchAuto
	c.Prefetch.MaxTilesPerCycle = 100
	c.Resources.Network = 256
	c.Resources.DiskIO = 64
	c.Resources.CPU = int64(runtime.GOMAXPROCS(0))
	return c
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".xearthlayer", "cache")
	}
	return filepath.Join(home, ".xearthlayer", "cache")
}
