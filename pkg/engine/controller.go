// Package engine drives the face display: it owns which expression is shown,
// blends between expressions, falls back to a resting pose, and injects idle
// behavior when nothing else is requested.
//
// All engine state belongs to the goroutine running Controller.Run. Other
// goroutines talk to it through the Queue and read frames from an immutable
// snapshot, so a frame never observes a half-applied state change.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-reachy-face/internal/log"
	"github.com/teslashibe/go-reachy-face/pkg/expression"
	"github.com/teslashibe/go-reachy-face/pkg/geom"
	"github.com/teslashibe/go-reachy-face/pkg/interp"
)

// Phase is the controller's state machine phase.
type Phase int

const (
	PhaseSteady Phase = iota
	PhaseTransitioning
)

func (p Phase) String() string {
	if p == PhaseTransitioning {
		return "transitioning"
	}
	return "steady"
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "steady":
		*p = PhaseSteady
	case "transitioning":
		*p = PhaseTransitioning
	default:
		return fmt.Errorf("unknown phase %q", b)
	}
	return nil
}

// Config configures a Controller. Zero fields take DefaultConfig values.
type Config struct {
	Width  float64
	Height float64

	// PollInterval is how often the queue is checked when nothing wakes
	// the controller.
	PollInterval time.Duration

	// Speed multiplies elapsed time. 1 is real time.
	Speed float64

	// Default builds the resting pose used at startup and whenever a
	// non-sticky pose expires with nothing queued.
	Default func() (*expression.Definition, error)

	Clock   Clock
	Metrics *Metrics
	Bus     *Bus
}

// DefaultConfig returns the settings for a 1024x600 display.
func DefaultConfig() Config {
	return Config{
		Width:        1024,
		Height:       600,
		PollInterval: 10 * time.Millisecond,
		Speed:        1,
		Default:      DefaultExpression,
	}
}

// DefaultExpression returns the sticky neutral pose.
func DefaultExpression() (*expression.Definition, error) {
	return expression.Neutral(expression.WithSticky(true))
}

// Frame is one rendered frame plus the state it was rendered from.
type Frame struct {
	Seq      uint64           `json:"seq"`
	Time     time.Time        `json:"time"`
	Phase    Phase            `json:"phase"`
	Progress float64          `json:"progress"`
	Current  expression.Info  `json:"current"`
	Target   *expression.Info `json:"target,omitempty"`
	Points   geom.Keyframe    `json:"points"`
}

// Status summarizes the controller for APIs.
type Status struct {
	Running     bool             `json:"running"`
	Phase       Phase            `json:"phase"`
	Progress    float64          `json:"progress"`
	Current     expression.Info  `json:"current"`
	Target      *expression.Info `json:"target,omitempty"`
	QueueLength int              `json:"queue_length"`
}

// state is the controller's state machine. Points are kept in normalized
// coordinates and scaled to the screen only when a frame is produced.
type state struct {
	current       *expression.Definition
	currentReq    Request
	currentFull   geom.Keyframe
	target        *expression.Definition
	targetReq     Request
	targetFull    geom.Keyframe
	from          geom.Keyframe // blend source, captured when the transition began
	phaseStart    time.Time
	transition    time.Duration
	hold          time.Duration // how long the current pose stays before the queue is consumed
	transitioning bool

	fallbackQueued bool
}

func (s *state) elapsed(now time.Time, speed float64) time.Duration {
	return time.Duration(float64(now.Sub(s.phaseStart)) * speed)
}

func (s *state) progress(now time.Time, speed float64) float64 {
	if !s.transitioning || s.transition <= 0 {
		return 1
	}
	return interp.Clamp01(float64(s.elapsed(now, speed)) / float64(s.transition))
}

// points returns the displayed pose in normalized coordinates.
func (s *state) points(now time.Time, speed float64) (geom.Keyframe, float64) {
	if !s.transitioning {
		return s.currentFull, 1
	}
	t := s.progress(now, speed)
	if t >= 1 {
		return s.targetFull, 1
	}
	// Easing only shapes keyframe playback; the cross-fade is always linear.
	return geom.Blend(s.from, s.targetFull, t), t
}

// Controller is the transition state machine.
type Controller struct {
	cfg     Config
	queue   *Queue
	bus     *Bus
	clock   Clock
	metrics *Metrics
	log     *slog.Logger

	st   state // owned by the goroutine calling step
	snap atomic.Pointer[state]

	seq     atomic.Uint64
	running atomic.Bool
	stopped atomic.Bool
}

// NewController creates a controller showing cfg.Default, consuming q.
func NewController(q *Queue, cfg Config) (*Controller, error) {
	def := DefaultConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if !(cfg.Speed > 0) {
		cfg.Speed = def.Speed
	}
	if cfg.Default == nil {
		cfg.Default = def.Default
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Bus == nil {
		cfg.Bus = NewBus(cfg.Metrics)
	}

	initial, err := cfg.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to build default expression: %w", err)
	}
	full := initial.Normalized(1)

	c := &Controller{
		cfg:     cfg,
		queue:   q,
		bus:     cfg.Bus,
		clock:   cfg.Clock,
		metrics: cfg.Metrics,
		log:     log.Component("engine"),
	}
	// The startup pose has no hold so the first request starts immediately.
	c.st = state{
		current:     initial,
		currentReq:  NewRequest(initial, SourceFallback),
		currentFull: full,
		from:        full,
		phaseStart:  cfg.Clock.Now(),
	}
	c.publish()
	return c, nil
}

// Queue returns the queue the controller consumes.
func (c *Controller) Queue() *Queue { return c.queue }

// Bus returns the event bus.
func (c *Controller) Bus() *Bus { return c.bus }

// Enqueue appends def to the queue. It starts after everything queued
// before it, once the current pose has been held for its duration.
func (c *Controller) Enqueue(def *expression.Definition) (uuid.UUID, error) {
	r := NewRequest(def, SourceAPI)
	return r.ID, c.Submit(r, false)
}

// Force drops everything queued and wakes the controller. def starts on
// the next step, not during this call: frames read before then still show
// the old pose, and the blend source is the pose displayed at that step.
// A running transition is abandoned without a completed event.
func (c *Controller) Force(def *expression.Definition) (uuid.UUID, error) {
	r := NewRequest(def, SourceAPI)
	return r.ID, c.Submit(r, true)
}

// Submit queues a prepared request.
func (c *Controller) Submit(r Request, force bool) error {
	if r.Def == nil {
		return ErrNilExpression
	}
	if c.stopped.Load() {
		return ErrStopped
	}
	if force {
		if dropped := c.queue.Force(r); dropped > 0 {
			c.log.Debug("force dropped queued expressions", "id", r.Def.ID(), "dropped", dropped)
		}
	} else {
		c.queue.Push(r)
	}
	c.metrics.setQueueDepth(c.queue.Len())
	return nil
}

// Run drives the state machine until ctx is done. It steps every
// PollInterval and whenever the queue is signalled.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("controller already running")
	}
	defer func() {
		c.stopped.Store(true)
		c.running.Store(false)
	}()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	c.log.Info("controller started", "poll", c.cfg.PollInterval, "speed", c.cfg.Speed)
	for {
		select {
		case <-ctx.Done():
			c.log.Info("controller stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-c.queue.Wake():
		}
		c.step(c.clock.Now())
	}
}

// step advances the state machine to now.
func (c *Controller) step(now time.Time) {
	s := &c.st
	speed := c.cfg.Speed

	// 1. Finish the transition once its duration has elapsed.
	if s.transitioning && s.elapsed(now, speed) >= s.transition {
		c.finish(now)
	}

	// 2. A forced request preempts everything, including a running transition.
	if r, ok := c.queue.TakeForce(); ok {
		c.start(now, r)
	}

	held := !s.transitioning && s.elapsed(now, speed) >= s.hold

	// 3. A non-sticky pose that has been held long enough falls back to
	// the default when nobody asked for anything else.
	if held && !s.current.Sticky() && !s.fallbackQueued {
		c.queueFallback()
	}

	// 4. Start the next queued request.
	if held {
		if r, ok := c.queue.Pop(); ok {
			c.start(now, r)
		}
	}

	c.metrics.setQueueDepth(c.queue.Len())
	c.publish()
}

// start begins a transition to r. A panic while preparing r leaves the
// current pose untouched.
func (c *Controller) start(now time.Time, r Request) {
	defer func() {
		if p := recover(); p != nil {
			c.metrics.consumerError()
			c.log.Error("failed to start expression", "id", requestID(r), "source", r.Source, "panic", p)
		}
	}()
	if r.Def == nil {
		c.metrics.consumerError()
		c.log.Warn("skipping empty request", "request", r.ID)
		return
	}

	s := &c.st
	from, _ := s.points(now, c.cfg.Speed)
	full := r.Def.Normalized(1)

	if s.transitioning {
		// Only force gets here. The abandoned target never completes.
		c.metrics.transitionAbandoned()
		c.log.Debug("transition abandoned", "id", s.target.ID(), "by", r.Def.ID())
	} else {
		c.emit(EventCompleted, s.currentReq, now)
		c.metrics.expressionCompleted(s.current.ID())
	}

	s.target = r.Def
	s.targetReq = r
	s.targetFull = full
	s.from = from
	s.phaseStart = now
	s.transition = r.Def.TransitionDuration()
	s.hold = r.Def.Duration()
	s.transitioning = true
	s.fallbackQueued = false

	c.emit(EventStarted, r, now)
	c.metrics.expressionStarted(r.Def.ID())
	c.log.Debug("expression started", "id", r.Def.ID(), "source", r.Source, "transition", s.transition)
}

func (c *Controller) finish(now time.Time) {
	s := &c.st
	s.current = s.target
	s.currentReq = s.targetReq
	s.currentFull = s.targetFull
	s.from = s.targetFull
	s.target = nil
	s.targetReq = Request{}
	s.phaseStart = now
	s.transitioning = false
	s.fallbackQueued = false
}

func (c *Controller) queueFallback() {
	def, err := c.cfg.Default()
	if err != nil {
		c.st.fallbackQueued = true
		c.metrics.consumerError()
		c.log.Error("failed to build fallback expression", "error", err)
		return
	}
	if c.queue.PushIfEmpty(NewRequest(def, SourceFallback)) {
		c.st.fallbackQueued = true
		c.metrics.fallbackQueued()
		c.log.Debug("fallback queued", "after", c.st.current.ID())
	}
}

func (c *Controller) emit(kind EventKind, r Request, now time.Time) {
	info := r.Def.Info()
	c.bus.Publish(Event{
		Kind:       kind,
		RequestID:  r.ID,
		Source:     r.Source,
		Expression: &info,
		Time:       now,
	})
}

func (c *Controller) publish() {
	cp := c.st
	c.snap.Store(&cp)
}

// RenderFrame returns the 24 points to draw now, in pixels.
func (c *Controller) RenderFrame() geom.Keyframe {
	return c.Frame().Points
}

// Frame renders the current pose at the clock's current time. Safe to call
// from any goroutine.
func (c *Controller) Frame() Frame {
	s := c.snap.Load()
	now := c.clock.Now()
	pts, t := s.points(now, c.cfg.Speed)

	f := Frame{
		Seq:      c.seq.Add(1),
		Time:     now,
		Phase:    PhaseSteady,
		Progress: t,
		Current:  s.current.Info(),
		Points:   pts.ToScreen(c.cfg.Width, c.cfg.Height),
	}
	if s.transitioning {
		info := s.target.Info()
		f.Phase = PhaseTransitioning
		f.Target = &info
	}
	c.metrics.frameRendered()
	return f
}

// Status returns a summary of the controller.
func (c *Controller) Status() Status {
	s := c.snap.Load()
	st := Status{
		Running:     c.running.Load(),
		Phase:       PhaseSteady,
		Progress:    s.progress(c.clock.Now(), c.cfg.Speed),
		Current:     s.current.Info(),
		QueueLength: c.queue.Len(),
	}
	if s.transitioning {
		info := s.target.Info()
		st.Phase = PhaseTransitioning
		st.Target = &info
	}
	return st
}

// Size returns the display size frames are scaled to.
func (c *Controller) Size() (width, height float64) {
	return c.cfg.Width, c.cfg.Height
}

func requestID(r Request) string {
	if r.Def == nil {
		return ""
	}
	return r.Def.ID()
}
