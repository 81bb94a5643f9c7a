package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/teslashibe/go-reachy-face/pkg/expression"
	"github.com/teslashibe/go-reachy-face/pkg/geom"
)

const (
	screenW = 1024.0
	screenH = 600.0
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	t       *testing.T
	ctrl    *Controller
	clock   *ManualClock
	events  <-chan Event
	metrics *Metrics
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()
	clock := NewManualClock(epoch)
	metrics := NewMetrics(prometheus.NewRegistry())
	bus := NewBus(metrics)
	events, cancel := bus.Subscribe(256)
	t.Cleanup(cancel)

	cfg := Config{
		Width:   screenW,
		Height:  screenH,
		Clock:   clock,
		Bus:     bus,
		Metrics: metrics,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctrl, err := NewController(NewQueue(), cfg)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return &harness{t: t, ctrl: ctrl, clock: clock, events: events, metrics: metrics}
}

// advance moves the clock and steps the controller once.
func (h *harness) advance(d time.Duration) {
	h.ctrl.step(h.clock.Advance(d))
}

// drain returns every event published so far.
func (h *harness) drain() []Event {
	var out []Event
	for {
		select {
		case e := <-h.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func (h *harness) enqueue(def *expression.Definition, err error) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("build expression: %v", err)
	}
	if _, err := h.ctrl.Enqueue(def); err != nil {
		h.t.Fatalf("Enqueue: %v", err)
	}
}

func (h *harness) force(def *expression.Definition, err error) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("build expression: %v", err)
	}
	if _, err := h.ctrl.Force(def); err != nil {
		h.t.Fatalf("Force: %v", err)
	}
}

func kinds(events []Event, kind EventKind) []string {
	var ids []string
	for _, e := range events {
		if e.Kind == kind && e.Expression != nil {
			ids = append(ids, e.Expression.ID)
		}
	}
	return ids
}

func keyframesEqual(a, b geom.Keyframe, eps float64) bool {
	for i := range a {
		if math.Abs(a[i].X-b[i].X) > eps || math.Abs(a[i].Y-b[i].Y) > eps {
			return false
		}
	}
	return true
}

func TestController_StickyNeutral(t *testing.T) {
	h := newHarness(t)
	h.enqueue(expression.Neutral(expression.WithSticky(true)))

	h.advance(0)
	if st := h.ctrl.Status(); st.Phase != PhaseTransitioning {
		t.Fatalf("phase = %v, want transitioning", st.Phase)
	}

	h.advance(200 * time.Millisecond)

	neutral, _ := expression.Neutral()
	want := neutral.Keyframes()[0].ToScreen(screenW, screenH)
	if got := h.ctrl.RenderFrame(); !keyframesEqual(got, want, 1e-6) {
		t.Errorf("frame after transition is not the neutral keyframe")
	}

	for i := 0; i < 500; i++ {
		h.advance(10 * time.Millisecond)
	}

	st := h.ctrl.Status()
	if st.Phase != PhaseSteady || st.Current.ID != expression.IDNeutral {
		t.Errorf("status = %+v, want steady neutral", st)
	}
	if n := testutil.ToFloat64(h.metrics.fallbacks); n != 0 {
		t.Errorf("fallbacks = %v, want 0 for a sticky pose", n)
	}
	if started := kinds(h.drain(), EventStarted); len(started) != 1 {
		t.Errorf("started events = %v, want exactly one", started)
	}
}

func TestController_NonStickyFallsBackToNeutral(t *testing.T) {
	h := newHarness(t)
	h.enqueue(expression.Happy())

	h.advance(0)
	h.advance(200 * time.Millisecond)
	if st := h.ctrl.Status(); st.Phase != PhaseSteady || st.Current.ID != expression.IDHappy {
		t.Fatalf("status = %+v, want steady happy", st)
	}

	h.advance(999 * time.Millisecond)
	if st := h.ctrl.Status(); st.Phase != PhaseSteady || st.Current.ID != expression.IDHappy {
		t.Fatalf("fallback fired before the hold elapsed: %+v", st)
	}

	h.drain()
	h.advance(1 * time.Millisecond) // 1.2s after enqueue

	st := h.ctrl.Status()
	if st.Phase != PhaseTransitioning || st.Target == nil || st.Target.ID != expression.IDNeutral {
		t.Fatalf("status = %+v, want transitioning to neutral", st)
	}
	if !st.Target.Sticky {
		t.Error("fallback neutral is not sticky")
	}

	events := h.drain()
	if got := kinds(events, EventCompleted); len(got) != 1 || got[0] != expression.IDHappy {
		t.Errorf("completed = %v, want [happy]", got)
	}
	if len(events) < 2 || events[1].Kind != EventStarted || events[1].Source != SourceFallback {
		t.Errorf("events = %+v, want fallback start", events)
	}
	if n := testutil.ToFloat64(h.metrics.fallbacks); n != 1 {
		t.Errorf("fallbacks = %v, want 1", n)
	}
}

func TestController_ForceMidTransitionAbandonsTarget(t *testing.T) {
	h := newHarness(t)
	h.enqueue(expression.Sad(expression.WithTransition(500 * time.Millisecond)))
	h.advance(0)
	sadReq := h.ctrl.Status().Target
	if sadReq == nil || sadReq.ID != expression.IDSad {
		t.Fatalf("sad did not start")
	}

	h.clock.Advance(250 * time.Millisecond)
	displayed := h.ctrl.RenderFrame()
	h.drain()

	h.force(expression.Angry())
	h.ctrl.step(h.clock.Now())

	frame := h.ctrl.Frame()
	if frame.Phase != PhaseTransitioning || frame.Target.ID != expression.IDAngry {
		t.Fatalf("frame = %+v, want transitioning to angry", frame)
	}
	if !keyframesEqual(frame.Points, displayed, 1e-9) {
		t.Error("blend did not start from the points displayed at force time")
	}

	events := h.drain()
	if got := kinds(events, EventStarted); len(got) != 1 || got[0] != expression.IDAngry {
		t.Errorf("started = %v, want [angry]", got)
	}
	if got := kinds(events, EventCompleted); len(got) != 0 {
		t.Errorf("completed = %v, want none", got)
	}

	// Run well past every hold: sad must never complete.
	for i := 0; i < 300; i++ {
		h.advance(10 * time.Millisecond)
	}
	for _, id := range kinds(h.drain(), EventCompleted) {
		if id == expression.IDSad {
			t.Fatal("abandoned sad emitted expression_completed")
		}
	}
	if n := testutil.ToFloat64(h.metrics.abandoned); n != 1 {
		t.Errorf("abandoned = %v, want 1", n)
	}
}

func TestController_ForceWhileSteadyCompletesCurrent(t *testing.T) {
	h := newHarness(t)
	h.enqueue(expression.Happy())
	h.advance(0)
	h.advance(200 * time.Millisecond)
	h.drain()

	h.force(expression.Surprised())
	h.advance(10 * time.Millisecond)

	events := h.drain()
	if got := kinds(events, EventCompleted); len(got) != 1 || got[0] != expression.IDHappy {
		t.Errorf("completed = %v, want [happy]", got)
	}
	if got := kinds(events, EventStarted); len(got) != 1 || got[0] != expression.IDSurprised {
		t.Errorf("started = %v, want [surprised]", got)
	}
}

func TestController_ForceDropsQueued(t *testing.T) {
	h := newHarness(t)
	h.enqueue(expression.Happy())
	h.enqueue(expression.Sad())
	h.force(expression.Sleepy())

	if n := h.ctrl.Queue().Len(); n != 1 {
		t.Fatalf("queue length = %d, want only the forced request", n)
	}

	for i := 0; i < 400; i++ {
		h.advance(10 * time.Millisecond)
	}
	started := kinds(h.drain(), EventStarted)
	if len(started) == 0 || started[0] != expression.IDSleepy {
		t.Fatalf("started = %v, want sleepy first", started)
	}
	for _, id := range started {
		if id == expression.IDHappy || id == expression.IDSad {
			t.Errorf("dropped expression %s was started", id)
		}
	}
}

func TestController_HoldsBeforeNextRequest(t *testing.T) {
	h := newHarness(t)
	h.enqueue(expression.Happy())
	h.enqueue(expression.Sad())

	h.advance(0)
	h.advance(200 * time.Millisecond)
	h.advance(500 * time.Millisecond)
	if st := h.ctrl.Status(); st.Current.ID != expression.IDHappy || st.Phase != PhaseSteady {
		t.Fatalf("sad started before happy's hold elapsed: %+v", st)
	}

	h.advance(500 * time.Millisecond)
	if st := h.ctrl.Status(); st.Target == nil || st.Target.ID != expression.IDSad {
		t.Fatalf("status = %+v, want transitioning to sad", st)
	}
	if n := testutil.ToFloat64(h.metrics.fallbacks); n != 0 {
		t.Errorf("fallback queued although sad was waiting")
	}
}

func TestController_ZeroTransition(t *testing.T) {
	h := newHarness(t)
	happy, err := expression.Happy(expression.WithTransition(0))
	h.enqueue(happy, err)
	h.advance(0)

	frame := h.ctrl.Frame()
	want := happy.Normalized(1).ToScreen(screenW, screenH)
	if frame.Progress != 1 {
		t.Errorf("progress = %v, want 1", frame.Progress)
	}
	for _, p := range frame.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			t.Fatal("frame contains NaN")
		}
	}
	if !keyframesEqual(frame.Points, want, 1e-9) {
		t.Error("zero transition did not render the target immediately")
	}

	h.advance(0)
	if st := h.ctrl.Status(); st.Phase != PhaseSteady || st.Current.ID != expression.IDHappy {
		t.Errorf("status = %+v, want steady happy", st)
	}
}

func TestController_BlendMidway(t *testing.T) {
	h := newHarness(t)
	h.enqueue(expression.Happy())
	h.advance(0)
	h.clock.Advance(100 * time.Millisecond)

	neutral, _ := expression.Neutral()
	happy, _ := expression.Happy()
	from := neutral.Normalized(1)
	to := happy.Normalized(1)

	frame := h.ctrl.Frame()
	if math.Abs(frame.Progress-0.5) > 1e-9 {
		t.Fatalf("progress = %v, want 0.5", frame.Progress)
	}
	want := geom.Blend(from, to, 0.5).ToScreen(screenW, screenH)
	if !keyframesEqual(frame.Points, want, 1e-9) {
		t.Error("midway frame is not the linear blend")
	}
}

func TestController_ForcedBlendIgnoresEasing(t *testing.T) {
	h := newHarness(t)
	angry, err := expression.Angry(expression.WithTransition(200 * time.Millisecond))
	if err != nil {
		t.Fatalf("build expression: %v", err)
	}
	if angry.Interpolation().String() == "linear" {
		t.Fatalf("angry should use an easing curve, got %s", angry.Interpolation())
	}
	h.force(angry, nil)
	h.advance(0)
	h.clock.Advance(100 * time.Millisecond)

	neutral, _ := expression.Neutral()
	from := neutral.Normalized(1)
	to := angry.Normalized(1)

	frame := h.ctrl.Frame()
	if math.Abs(frame.Progress-0.5) > 1e-9 {
		t.Fatalf("progress = %v, want 0.5", frame.Progress)
	}
	want := geom.Blend(from, to, 0.5).ToScreen(screenW, screenH)
	if !keyframesEqual(frame.Points, want, 1e-9) {
		t.Error("forced blend at 50% is not halfway between the poses")
	}
}

func TestController_ForceAppliesOnNextStep(t *testing.T) {
	h := newHarness(t)
	h.advance(0)
	before := h.ctrl.Frame()

	h.force(expression.Surprised())
	h.clock.Advance(10 * time.Millisecond)

	frame := h.ctrl.Frame()
	if frame.Phase != PhaseSteady || frame.Target != nil {
		t.Fatalf("frame = %+v, want steady until the next step", frame)
	}
	if !keyframesEqual(frame.Points, before.Points, 1e-9) {
		t.Error("pose changed before the controller stepped")
	}

	h.ctrl.step(h.clock.Now())
	frame = h.ctrl.Frame()
	if frame.Phase != PhaseTransitioning || frame.Target == nil || frame.Target.ID != expression.IDSurprised {
		t.Fatalf("frame = %+v, want transitioning to surprised", frame)
	}
}

func TestController_Speed(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Speed = 2 })
	h.enqueue(expression.Happy())
	h.advance(0)
	h.advance(100 * time.Millisecond)

	if st := h.ctrl.Status(); st.Phase != PhaseSteady {
		t.Errorf("phase = %v, want steady after half the transition at 2x speed", st.Phase)
	}
}

func TestController_ConsumerPanicKeepsPose(t *testing.T) {
	h := newHarness(t)

	neutral, _ := expression.Neutral()
	kf := neutral.Keyframes()[0]
	bad, err := expression.New("bad", "Bad", []geom.Keyframe{kf, kf},
		expression.WithSegmentFunc(0, "boom", func(a, b geom.Keyframe, t float64) geom.Keyframe {
			panic("boom")
		}))
	h.enqueue(bad, err)

	before := h.ctrl.RenderFrame()
	h.advance(0)

	st := h.ctrl.Status()
	if st.Phase != PhaseSteady || st.Current.ID != expression.IDNeutral {
		t.Fatalf("status = %+v, want steady neutral after a failed start", st)
	}
	if !keyframesEqual(h.ctrl.RenderFrame(), before, 0) {
		t.Error("pose changed after a failed start")
	}
	if n := testutil.ToFloat64(h.metrics.consumerErrs); n != 1 {
		t.Errorf("consumer errors = %v, want 1", n)
	}
	if got := h.drain(); len(got) != 0 {
		t.Errorf("events = %+v, want none", got)
	}

	h.enqueue(expression.Happy())
	h.advance(0)
	if st := h.ctrl.Status(); st.Target == nil || st.Target.ID != expression.IDHappy {
		t.Errorf("controller did not recover: %+v", st)
	}
}

func TestController_EnqueueErrors(t *testing.T) {
	h := newHarness(t)

	if _, err := h.ctrl.Enqueue(nil); !errors.Is(err, ErrNilExpression) {
		t.Errorf("Enqueue(nil) = %v, want ErrNilExpression", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ctrl.Run(ctx) }()
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}

	happy, _ := expression.Happy()
	if _, err := h.ctrl.Enqueue(happy); !errors.Is(err, ErrStopped) {
		t.Errorf("Enqueue after stop = %v, want ErrStopped", err)
	}
}

func TestController_RunConsumesQueue(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.PollInterval = time.Millisecond })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.ctrl.Run(ctx)

	h.enqueue(expression.Happy())

	deadline := time.After(2 * time.Second)
	for {
		st := h.ctrl.Status()
		if st.Target != nil && st.Target.ID == expression.IDHappy {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("Run did not start the queued expression: %+v", st)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestController_FrameSeq(t *testing.T) {
	h := newHarness(t)
	a := h.ctrl.Frame()
	b := h.ctrl.Frame()
	if b.Seq != a.Seq+1 {
		t.Errorf("seq %d then %d, want consecutive", a.Seq, b.Seq)
	}
	if n := testutil.ToFloat64(h.metrics.frames); n != 2 {
		t.Errorf("frames = %v, want 2", n)
	}
}
