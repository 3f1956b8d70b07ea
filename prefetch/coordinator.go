// Package prefetch implements the Adaptive Prefetch Coordinator of §4.H: it
// turns aircraft telemetry into throttled, phase-appropriate PREFETCH job
// submissions against the Executor Daemon.
package prefetch

import (
	"context"
	"math"
	"sync"
	"time"

	xearthlayer "github.com/xearthlayer/xearthlayer"
	"github.com/xearthlayer/xearthlayer/cache"
	"github.com/xearthlayer/xearthlayer/daemon"
)

// Status is the coordinator's externally observable state, surfaced for
// diagnostics and tests.
type Status struct {
	Phase          Phase
	Mode           Mode
	Confidence     float64
	ThrottleState  ThrottleState
	ThrottleFrac   float64
	TurnSuspended  bool
	TelemetryStale bool
	LastCycleTiles int
	LastCycleAt    time.Time
}

// Options configures a Coordinator. Zero values take the defaults below.
type Options struct {
	CycleInterval       time.Duration // default 2s, must be >= 2s
	MinSamples          int           // calibration sample floor, default 50
	GroundZoom          uint8
	GroundRingSize      int
	CruiseZoom          uint8
	CruiseAheadCells    int
	CruiseBandHalfWidth int
	TurnThresholdDeg    float64       // default 10
	TurnStableDuration  time.Duration // default 3s
	StalenessLimit      time.Duration // default 5s
	MaxTilesPerCycle    int           // default 32
	SafetyMargin        float64       // default 0.7, aggressive-only time budget
}

func (o Options) withDefaults() Options {
	if o.CycleInterval < 2*time.Second {
		o.CycleInterval = 2 * time.Second
	}
	if o.MinSamples <= 0 {
		o.MinSamples = 50
	}
	if o.GroundZoom == 0 {
		o.GroundZoom = 15
	}
	if o.GroundRingSize <= 0 {
		o.GroundRingSize = 3
	}
	if o.CruiseZoom == 0 {
		o.CruiseZoom = 15
	}
	if o.CruiseAheadCells <= 0 {
		o.CruiseAheadCells = 5
	}
	if o.TurnThresholdDeg <= 0 {
		o.TurnThresholdDeg = 10
	}
	if o.TurnStableDuration <= 0 {
		o.TurnStableDuration = 3 * time.Second
	}
	if o.StalenessLimit <= 0 {
		o.StalenessLimit = 5 * time.Second
	}
	if o.MaxTilesPerCycle <= 0 {
		o.MaxTilesPerCycle = 32
	}
	if o.SafetyMargin <= 0 {
		o.SafetyMargin = 0.7
	}
	return o
}

// Coordinator is the Adaptive Prefetch Coordinator. Grounded on
// libvuln/updates.Manager.Start's ticker-driven long-lived-goroutine shape
// (the same idiom daemon.Daemon and cache's gc loop use).
type Coordinator struct {
	opts Options

	daemon *daemon.Daemon
	tiles  cache.Cache

	phases   *PhaseDetector
	calib    *Calibrator
	throttle *TransitionThrottle

	mu            sync.Mutex
	status        Status
	lastState     AircraftState
	lastTelemetry time.Time
	lastTrackAt   time.Time
	lastTrack     float64
	turnSince     time.Time
	turnPending   bool
}

// New builds a Coordinator. daemon and tiles are the production-side
// dependencies it drives. The coordinator always uses its own
// TransitionThrottle (the default takeoff transition schedule); no other
// PrefetchThrottler can be supplied.
func New(opts Options, d *daemon.Daemon, tiles cache.Cache) *Coordinator {
	opts = opts.withDefaults()
	return &Coordinator{
		opts:     opts,
		daemon:   d,
		tiles:    tiles,
		phases:   NewPhaseDetector(2 * time.Second),
		calib:    NewCalibrator(opts.MinSamples),
		throttle: NewTransitionThrottle(),
	}
}

// RecordTileCompletion feeds the bulk-load throughput observer that drives
// mode calibration.
func (c *Coordinator) RecordTileCompletion(at time.Time) {
	mode, confidence := c.calib.RecordCompletion(at)
	c.mu.Lock()
	c.status.Mode = mode
	c.status.Confidence = confidence
	c.mu.Unlock()
}

// Status reports the coordinator's current observable state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Observe feeds one telemetry sample and runs the turn detector and phase
// detector. It does not itself trigger a prefetch cycle; Run's ticker does.
func (c *Coordinator) Observe(s AircraftState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastTelemetry = s.At
	c.lastState = s

	phase, transitioned := c.phases.Update(s)
	if transitioned {
		if phase == PhaseCruise {
			c.throttle.OnGroundToCruise(s.At)
		} else {
			c.throttle.OnCruiseToGround()
		}
	}
	c.status.Phase = phase

	if c.lastTrackAt.IsZero() {
		c.lastTrack = s.TrackDeg
		c.lastTrackAt = s.At
	} else if delta := angleDelta(s.TrackDeg, c.lastTrack); math.Abs(delta) > c.opts.TurnThresholdDeg {
		c.turnPending = true
		c.turnSince = s.At
		c.lastTrack = s.TrackDeg
		c.lastTrackAt = s.At
	} else if c.turnPending && s.At.Sub(c.turnSince) >= c.opts.TurnStableDuration {
		c.turnPending = false
		c.lastTrack = s.TrackDeg
		c.lastTrackAt = s.At
	}
	c.status.TurnSuspended = c.turnPending
}

// angleDelta returns the signed smallest difference b-a in degrees,
// wrapped to [-180, 180).
func angleDelta(b, a float64) float64 {
	d := math.Mod(b-a+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

// Run drives the prefetch cycle loop until ctx is cancelled. telemetry
// delivers AircraftState samples; each is fed to Observe before the next
// scheduled cycle runs.
func (c *Coordinator) Run(ctx context.Context, telemetry <-chan AircraftState) {
	cycle := time.NewTicker(c.opts.CycleInterval)
	defer cycle.Stop()
	staleCheck := time.NewTicker(time.Second)
	defer staleCheck.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-telemetry:
			if !ok {
				return
			}
			c.Observe(s)
		case <-staleCheck.C:
			c.checkStaleness()
		case <-cycle.C:
			c.runCycle(ctx)
		}
	}
}

func (c *Coordinator) checkStaleness() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastTelemetry.IsZero() {
		return
	}
	c.status.TelemetryStale = time.Since(c.lastTelemetry) >= c.opts.StalenessLimit
}

// runCycle executes one prefetch cycle: throttle check, turn/staleness
// suspension, strategy planning, cache filtering, time-budget check
// (aggressive only), and job submission.
func (c *Coordinator) runCycle(ctx context.Context) {
	c.mu.Lock()
	stale := c.status.TelemetryStale
	suspended := c.turnPending
	phase := c.status.Phase
	sample := c.lastState
	c.mu.Unlock()

	if stale || suspended {
		return
	}
	if c.throttle.State() == ThrottlePaused {
		return
	}

	mode := c.calib.Mode()
	if mode == ModeDisabled {
		return
	}

	var strategy Strategy
	if phase == PhaseGround {
		strategy = GroundStrategy{Zoom: c.opts.GroundZoom, RingSize: c.opts.GroundRingSize}
	} else {
		strategy = CruiseStrategy{
			Zoom:               c.opts.CruiseZoom,
			AheadCells:         c.opts.CruiseAheadCells,
			BandHalfWidthCells: c.opts.CruiseBandHalfWidth,
		}
	}

	plan := strategy.Plan(sample)

	frac := c.throttle.Fraction()
	budget := int(float64(c.opts.MaxTilesPerCycle) * frac)
	if budget <= 0 {
		c.mu.Lock()
		c.status.LastCycleTiles = 0
		c.status.LastCycleAt = time.Now()
		c.mu.Unlock()
		return
	}

	submitted := 0
	for _, tile := range plan {
		if submitted >= budget {
			break
		}
		if c.tiles.Contains(ctx, tile.CacheKey()) {
			continue
		}
		if mode == ModeAggressive && !c.withinTimeBudget(len(plan)-submitted, sample) {
			break
		}
		req := &daemon.Request{
			Tile:     tile,
			Cfg:      xearthlayer.EncoderConfig{Format: "BC1", MipmapCount: 5},
			Origin:   xearthlayer.OriginPrefetch,
			Priority: xearthlayer.Prefetch,
			Ctx:      ctx,
			Reply:    make(chan daemon.Response, 1),
		}
		c.daemon.Submit(req)
		submitted++
	}

	c.mu.Lock()
	c.status.Mode = mode
	c.status.ThrottleState = c.throttle.State()
	c.status.ThrottleFrac = frac
	c.status.LastCycleTiles = submitted
	c.status.LastCycleAt = time.Now()
	c.mu.Unlock()
}

// withinTimeBudget estimates whether the remaining plan can complete before
// the aircraft needs it, per the aggressive-only time budget check: a fixed
// 50 ms per-tile cost estimate against a fixed 30 s horizon, scaled by the
// safety margin. The aircraft's position and ground speed are not used.
func (c *Coordinator) withinTimeBudget(remainingTiles int, s AircraftState) bool {
	const assumedMsPerTile = 50.0
	estimatedMs := float64(remainingTiles) * assumedMsPerTile
	timeAvailableMs := 30_000.0 // conservative horizon to the next DSF boundary
	return estimatedMs <= timeAvailableMs*c.opts.SafetyMargin
}
