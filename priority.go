package xearthlayer

//go:generate go run golang.org/x/tools/cmd/stringer -type Priority -linecomment

// Priority is a total order over job classes. ON_DEMAND always outranks
// PREFETCH; ties within a class are broken FIFO by enqueue time.
type Priority int

const (
	// Prefetch marks speculative, aircraft-telemetry-driven jobs.
	Prefetch Priority = iota // PREFETCH
	// OnDemand marks jobs triggered directly by a FUSE read.
	OnDemand // ON_DEMAND
)

// ResourceType names one of the three admission-controlled resource pools.
type ResourceType int

//go:generate go run golang.org/x/tools/cmd/stringer -type ResourceType -linecomment
const (
	Network ResourceType = iota // network
	DiskIO                      // disk_io
	CPU                         // cpu
)

// Origin names who asked for a tile.
type Origin int

const (
	OriginFuse Origin = iota
	OriginPrefetch
	OriginPrewarm
)

func (o Origin) String() string {
	switch o {
	case OriginFuse:
		return "fuse"
	case OriginPrefetch:
		return "prefetch"
	case OriginPrewarm:
		return "prewarm"
	default:
		return "unknown"
	}
}
