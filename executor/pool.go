package executor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// pool holds one weighted semaphore per resource type, grounded on
// pkg/poolstats.Collector's approach to exposing pgxpool.Stat as Prometheus
// gauges — here adapted to report in-use permit counts and pool capacity
// instead of connection-pool stats.
type pool struct {
	sems     map[xearthlayer.ResourceType]*semaphore.Weighted
	capacity map[xearthlayer.ResourceType]int64
	inUse    map[xearthlayer.ResourceType]*atomic.Int64
}

func newPool(network, diskIO, cpu int64) *pool {
	caps := map[xearthlayer.ResourceType]int64{
		xearthlayer.Network: network,
		xearthlayer.DiskIO:  diskIO,
		xearthlayer.CPU:     cpu,
	}
	p := &pool{
		sems:     make(map[xearthlayer.ResourceType]*semaphore.Weighted, 3),
		capacity: caps,
		inUse:    make(map[xearthlayer.ResourceType]*atomic.Int64, 3),
	}
	for rt, n := range caps {
		p.sems[rt] = semaphore.NewWeighted(n)
		p.inUse[rt] = &atomic.Int64{}
	}
	return p
}

// acquire blocks until a permit of type rt is available or ctx is done.
func (p *pool) acquire(ctx context.Context, rt xearthlayer.ResourceType) error {
	sem, ok := p.sems[rt]
	if !ok {
		return fmt.Errorf("executor: unknown resource type %v", rt)
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.inUse[rt].Add(1)
	return nil
}

func (p *pool) release(rt xearthlayer.ResourceType) {
	p.sems[rt].Release(1)
	p.inUse[rt].Add(-1)
}

// Collector exposes pool occupancy as Prometheus gauges.
type Collector struct {
	p         *pool
	inUseDesc *prometheus.Desc
	capDesc   *prometheus.Desc
}

func newCollector(p *pool) *Collector {
	return &Collector{
		p: p,
		inUseDesc: prometheus.NewDesc(
			"xearthlayer_resource_permits_in_use",
			"Number of resource permits currently checked out, by resource type.",
			[]string{"resource"}, nil),
		capDesc: prometheus.NewDesc(
			"xearthlayer_resource_permits_capacity",
			"Configured capacity for each resource type's permit pool.",
			[]string{"resource"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inUseDesc
	ch <- c.capDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for rt, cap := range c.p.capacity {
		name := rt.String()
		ch <- prometheus.MustNewConstMetric(c.inUseDesc, prometheus.GaugeValue, float64(c.p.inUse[rt].Load()), name)
		ch <- prometheus.MustNewConstMetric(c.capDesc, prometheus.GaugeValue, float64(cap), name)
	}
}

var _ prometheus.Collector = (*Collector)(nil)
