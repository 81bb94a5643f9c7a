package engine

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/teslashibe/go-reachy-face/internal/log"
	"github.com/teslashibe/go-reachy-face/pkg/expression"
	"github.com/teslashibe/go-reachy-face/pkg/interp"
)

// Idle expression kinds, used as the metrics label and request source suffix.
const (
	IdleBlink      = "blink"
	IdleLookAround = "look_around"
)

// Blink timing used by the idle scheduler.
const (
	idleBlinkDuration   = 50 * time.Millisecond
	idleBlinkTransition = 50 * time.Millisecond
)

// IdleConfig configures an IdleScheduler.
type IdleConfig struct {
	IntervalMin   time.Duration
	IntervalMax   time.Duration
	LookAroundMin time.Duration
	LookAroundMax time.Duration

	// LookAroundDurationMin and LookAroundDurationMax bound how long a
	// look-around pose is held.
	LookAroundDurationMin time.Duration
	LookAroundDurationMax time.Duration

	// Seed makes the schedule reproducible. Zero seeds randomly.
	Seed uint64

	Clock   Clock
	Metrics *Metrics
	Bus     *Bus
}

// DefaultIdleConfig returns the default idle timing.
func DefaultIdleConfig() IdleConfig {
	return IdleConfig{
		IntervalMin:           4 * time.Second,
		IntervalMax:           6 * time.Second,
		LookAroundMin:         10 * time.Second,
		LookAroundMax:         15 * time.Second,
		LookAroundDurationMin: 1 * time.Second,
		LookAroundDurationMax: 3 * time.Second,
	}
}

// IdleScheduler queues blinks and small gaze shifts while idle mode is on
// and nothing else is waiting. It only ever touches the queue.
type IdleScheduler struct {
	cfg     IdleConfig
	queue   *Queue
	clock   Clock
	bus     *Bus
	metrics *Metrics
	log     *slog.Logger

	mu              sync.Mutex
	enabled         bool
	rng             *rand.Rand
	lastLookAround  time.Time
	lookAroundAfter time.Duration
}

// NewIdleScheduler creates a disabled scheduler feeding q.
func NewIdleScheduler(q *Queue, cfg IdleConfig) *IdleScheduler {
	def := DefaultIdleConfig()
	if cfg.IntervalMin <= 0 || cfg.IntervalMax < cfg.IntervalMin {
		cfg.IntervalMin, cfg.IntervalMax = def.IntervalMin, def.IntervalMax
	}
	if cfg.LookAroundMin <= 0 || cfg.LookAroundMax < cfg.LookAroundMin {
		cfg.LookAroundMin, cfg.LookAroundMax = def.LookAroundMin, def.LookAroundMax
	}
	if cfg.LookAroundDurationMin <= 0 || cfg.LookAroundDurationMax < cfg.LookAroundDurationMin {
		cfg.LookAroundDurationMin, cfg.LookAroundDurationMax = def.LookAroundDurationMin, def.LookAroundDurationMax
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	s := &IdleScheduler{
		cfg:     cfg,
		queue:   q,
		clock:   cfg.Clock,
		bus:     cfg.Bus,
		metrics: cfg.Metrics,
		log:     log.Component("idle"),
		rng:     rng,
	}
	s.resetLookAround(cfg.Clock.Now())
	return s
}

// SetEnabled switches idle mode and emits idle_started or idle_ended when
// the setting changes.
func (s *IdleScheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	if s.enabled == enabled {
		s.mu.Unlock()
		return
	}
	s.enabled = enabled
	now := s.clock.Now()
	if enabled {
		s.resetLookAround(now)
	}
	s.mu.Unlock()

	kind := EventIdleEnded
	if enabled {
		kind = EventIdleStarted
	}
	if s.bus != nil {
		s.bus.Publish(Event{Kind: kind, Source: SourceIdle, Time: now})
	}
	s.log.Info("idle mode changed", "enabled", enabled)
}

// Enabled reports whether idle mode is on.
func (s *IdleScheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Tick runs one scheduling decision at now. It returns the kind of
// expression queued, or "" when nothing was queued.
func (s *IdleScheduler) Tick(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || !s.queue.Empty() {
		return ""
	}

	kind := IdleBlink
	lookAround := now.Sub(s.lastLookAround) >= s.lookAroundAfter

	var def *expression.Definition
	var err error
	if lookAround {
		kind = IdleLookAround
		def, err = s.lookAroundExpression()
	} else {
		def, err = expression.Blink(
			expression.WithDuration(idleBlinkDuration),
			expression.WithTransition(idleBlinkTransition),
			expression.WithInterpolation(interp.ModeEaseInOut),
		)
	}
	if err != nil {
		s.log.Error("failed to build idle expression", "kind", kind, "error", err)
		return ""
	}

	// The queue may have filled since the check above; never compete with it.
	if !s.queue.PushIfEmpty(NewRequest(def, SourceIdle)) {
		return ""
	}
	if lookAround {
		s.resetLookAround(now)
	}
	s.metrics.idleInjected(kind)
	s.log.Debug("idle expression queued", "kind", kind)
	return kind
}

// lookAroundExpression builds a neutral pose shifted by a random offset in
// [-0.5,0.5]², held for a random duration, at either full or 90% scale.
func (s *IdleScheduler) lookAroundExpression() (*expression.Definition, error) {
	x := s.rng.Float64() - 0.5
	y := s.rng.Float64() - 0.5
	hold := s.between(s.cfg.LookAroundDurationMin, s.cfg.LookAroundDurationMax)
	scale := 1.0
	if s.rng.IntN(2) == 0 {
		scale = 0.9
	}
	return expression.Neutral(
		expression.WithSticky(false),
		expression.WithPosition(x, y),
		expression.WithScale(scale),
		expression.WithDuration(hold),
	)
}

func (s *IdleScheduler) resetLookAround(now time.Time) {
	s.lastLookAround = now
	s.lookAroundAfter = s.between(s.cfg.LookAroundMin, s.cfg.LookAroundMax)
}

// NextInterval draws the wait before the next tick.
func (s *IdleScheduler) NextInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.between(s.cfg.IntervalMin, s.cfg.IntervalMax)
}

// between draws uniformly from [lo, hi]. Callers hold s.mu or own s.
func (s *IdleScheduler) between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rng.Int64N(int64(hi-lo)+1))
}

// Run ticks at random intervals until ctx is done.
func (s *IdleScheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.NextInterval()):
			s.Tick(s.clock.Now())
		}
	}
}
