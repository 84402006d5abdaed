package driver

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/simhost/diag"
	"github.com/wippyai/simhost/engine"
	hosterrors "github.com/wippyai/simhost/errors"
	"github.com/wippyai/simhost/internal/guesttest"
	"github.com/wippyai/simhost/linker"
	"github.com/wippyai/simhost/memory"
)

// wiring connects the linker's handlers to a channel and a driver created
// after linking.
type wiring struct {
	ch     *diag.Channel
	driver *Driver
}

func (w *wiring) Log(_ context.Context, mod api.Module, ptr, length uint32) {
	w.ch.DecodeLog(memory.NewView(mod), ptr, length)
}

func (w *wiring) Fatal(_ context.Context, _ api.Module, code uint32) {
	w.ch.ReportFatal(code)
}

func (w *wiring) NotifyBootImageOffset(_ context.Context, ptr uint32) {
	w.driver.NotifyBootImageOffset(ptr)
}

func (w *wiring) Unimplemented(_ context.Context, module, name string, args []uint64) {
	w.ch.ReportUnimplemented(module, name, args)
}

type frameRecorder struct {
	frames [][]byte
	err    error
}

func (r *frameRecorder) Present(frame []byte) error {
	r.frames = append(r.frames, append([]byte(nil), frame...))
	return r.err
}

type fixedInput uint32

func (i fixedInput) Snapshot() uint32 { return uint32(i) }

type harness struct {
	driver   *Driver
	inst     *engine.Instance
	recorder *diag.Recorder
	frames   *frameRecorder
}

func newHarness(t *testing.T, opts guesttest.Options, cfg Config, extra ...Option) *harness {
	t.Helper()
	ctx := context.Background()

	eng := engine.New(ctx, nil)
	t.Cleanup(func() { eng.Close(ctx) })

	mod, err := eng.Compile(ctx, guesttest.Build(opts))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	rec := diag.NewRecorder(0)
	w := &wiring{ch: diag.NewChannel(rec)}
	inst, _, err := linker.Link(ctx, eng, mod, w, "guest")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	frames := &frameRecorder{}
	w.driver = New(inst, w.ch, cfg, append([]Option{WithPresenter(frames)}, extra...)...)
	return &harness{driver: w.driver, inst: inst, recorder: rec, frames: frames}
}

func smallConfig() Config {
	return Config{Width: 4, Height: 4, CyclesPerTick: 1000}
}

func guestGlobal(t *testing.T, inst *engine.Instance, export string) uint32 {
	t.Helper()
	res, err := inst.Call(context.Background(), export)
	if err != nil {
		t.Fatalf("%s: %v", export, err)
	}
	return api.DecodeU32(res[0])
}

func TestDriver_SixtyFrames(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, guesttest.Options{}, Config{Width: 160, Height: 144, CyclesPerTick: 1_000_000})

	if err := h.driver.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h.driver.State() != StateReady {
		t.Fatalf("state after Start = %s", h.driver.State())
	}

	for i := 0; i < 60; i++ {
		if err := h.driver.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i+1, err)
		}
	}

	if len(h.frames.frames) != 60 {
		t.Fatalf("presented %d frames, want 60", len(h.frames.frames))
	}
	for i, f := range h.frames.frames {
		if len(f) != 160*144*4 {
			t.Fatalf("frame %d has %d bytes", i, len(f))
		}
		if got := binary.LittleEndian.Uint32(f); got != uint32(i+1) {
			t.Errorf("frame %d carries tick %d", i, got)
		}
	}

	stats := h.driver.Stats()
	if stats.Ticks != 60 || stats.Frames != 60 || stats.Cycles != 60_000_000 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.State != StateRunning {
		t.Errorf("state = %s", stats.State)
	}
	if got := guestGlobal(t, h.inst, "cycle_total"); got != uint32(60_000_000) {
		t.Errorf("guest saw %d cycles", got)
	}
}

func TestDriver_FatalHaltsForever(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, guesttest.Options{FatalAtTick: 10}, smallConfig())

	if err := h.driver.Start(ctx); err != nil {
		t.Fatal(err)
	}

	var fatalErr error
	for i := 1; i <= 10; i++ {
		err := h.driver.Tick(ctx)
		if i < 10 && err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if i == 10 {
			fatalErr = err
		}
	}

	if !errors.Is(fatalErr, hosterrors.ErrGuestFatal) {
		t.Fatalf("tick 10 returned %v, want guest_fatal", fatalErr)
	}
	if h.driver.State() != StateHalted {
		t.Fatalf("state = %s", h.driver.State())
	}
	if !errors.Is(h.driver.Err(), hosterrors.ErrGuestFatal) {
		t.Errorf("Err = %v", h.driver.Err())
	}

	// No frame is presented for the fatal tick.
	if len(h.frames.frames) != 9 {
		t.Errorf("presented %d frames, want 9", len(h.frames.frames))
	}

	ticksBefore := guestGlobal(t, h.inst, "tick_count")
	for i := 0; i < 5; i++ {
		if err := h.driver.Tick(ctx); !errors.Is(err, ErrHalted) {
			t.Fatalf("tick after halt returned %v", err)
		}
	}
	if got := guestGlobal(t, h.inst, "tick_count"); got != ticksBefore {
		t.Errorf("guest stepped after halt: %d -> %d", ticksBefore, got)
	}

	if n := h.recorder.Count(diag.KindFatal); n != 1 {
		t.Errorf("fatal records = %d, want 1", n)
	}
	rec := h.recorder.Records()
	last := rec[len(rec)-1]
	if last.Kind != diag.KindFatal || last.Code != 7 || last.Tick != 10 {
		t.Errorf("last record = %+v", last)
	}
}

func TestDriver_Deterministic(t *testing.T) {
	run := func() [][]byte {
		ctx := context.Background()
		h := newHarness(t, guesttest.Options{BootOffset: 0x8000}, Config{
			Width: 4, Height: 4, CyclesPerTick: 70224, BootImage: []byte{0x5A, 1, 2, 3},
		}, WithInput(fixedInput(0b1001)))
		if err := h.driver.Start(ctx); err != nil {
			t.Fatal(err)
		}
		if err := h.driver.RunFrames(ctx, Immediate{}, 20); err != nil {
			t.Fatal(err)
		}
		return h.frames.frames
	}

	a, b := run(), run()
	if len(a) != 20 || len(b) != 20 {
		t.Fatalf("frame counts %d, %d", len(a), len(b))
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			t.Fatalf("frame %d differs between runs", i)
		}
	}
	// Input and boot image reached the guest.
	if got := binary.LittleEndian.Uint32(a[0][4:]); got != 0b1001 {
		t.Errorf("input echoed as %#b", got)
	}
	if got := binary.LittleEndian.Uint32(a[0][8:]); got != 0x5A {
		t.Errorf("boot byte echoed as %#x", got)
	}
}

func TestDriver_HaltIsFinal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, guesttest.Options{}, smallConfig())
	if err := h.driver.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.driver.Tick(ctx); err != nil {
		t.Fatal(err)
	}

	h.driver.Halt(nil)
	if h.driver.State() != StateHalted {
		t.Fatalf("state = %s", h.driver.State())
	}
	if err := h.driver.Tick(ctx); !errors.Is(err, ErrHalted) {
		t.Errorf("Tick = %v", err)
	}
	if err := h.driver.Start(ctx); !errors.Is(err, hosterrors.ErrInvalidState) {
		t.Errorf("Start after halt = %v", err)
	}
	if err := h.driver.Run(ctx, Immediate{}); err != nil {
		t.Errorf("Run after explicit halt = %v", err)
	}
	if got := guestGlobal(t, h.inst, "tick_count"); got != 1 {
		t.Errorf("guest ticks = %d", got)
	}
}

func TestDriver_FrameOutOfBounds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, guesttest.Options{FrameBufferOffset: guesttest.Pages*65536 - 8}, smallConfig())

	if err := h.driver.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := h.driver.Tick(ctx)
	if !errors.Is(err, hosterrors.ErrOutOfBounds) {
		t.Fatalf("Tick = %v, want out_of_bounds", err)
	}
	if h.driver.State() != StateHalted {
		t.Errorf("state = %s", h.driver.State())
	}
	if h.recorder.Count(diag.KindFault) != 1 {
		t.Errorf("fault records = %d", h.recorder.Count(diag.KindFault))
	}
	if len(h.frames.frames) != 0 {
		t.Error("frame presented despite out-of-bounds span")
	}
}

func TestDriver_GrowthDuringStep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, guesttest.Options{GrowAtTick: 2}, smallConfig())
	if err := h.driver.Start(ctx); err != nil {
		t.Fatal(err)
	}

	before := h.driver.View().Size()
	for i := 0; i < 3; i++ {
		if err := h.driver.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i+1, err)
		}
	}
	if after := h.driver.View().Size(); after != before+65536 {
		t.Errorf("size %d -> %d", before, after)
	}
	if got := binary.LittleEndian.Uint32(h.frames.frames[2]); got != 3 {
		t.Errorf("frame after growth carries tick %d", got)
	}
}

func TestDriver_TrapHalts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, guesttest.Options{TrapAtTick: 2}, smallConfig())
	if err := h.driver.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.driver.Tick(ctx); err != nil {
		t.Fatal(err)
	}

	err := h.driver.Tick(ctx)
	if !errors.Is(err, hosterrors.ErrGuestTrap) {
		t.Fatalf("Tick = %v, want guest_trap", err)
	}
	if errors.Is(err, hosterrors.ErrGuestFatal) {
		t.Error("trap misreported as fatal")
	}
	if h.driver.State() != StateHalted {
		t.Errorf("state = %s", h.driver.State())
	}
	if h.recorder.Count(diag.KindFault) != 1 {
		t.Errorf("fault records = %d", h.recorder.Count(diag.KindFault))
	}
}

func TestDriver_LogsDuringStep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, guesttest.Options{LogEveryStep: true}, smallConfig())
	if err := h.driver.Start(ctx); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := h.driver.Tick(ctx); err != nil {
			t.Fatal(err)
		}
	}

	logs := h.recorder.Records()
	if len(logs) != 3 {
		t.Fatalf("records = %d", len(logs))
	}
	for i, r := range logs {
		if r.Kind != diag.KindLog || r.Text != "hello" || r.Tick != uint64(i+1) {
			t.Errorf("record %d = %+v", i, r)
		}
		if r.Session != h.driver.Session().ID || r.Session == "" {
			t.Errorf("record %d session = %q", i, r.Session)
		}
	}
}

func TestDriver_LegacyStepName(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, guesttest.Options{StepName: "cycle"}, smallConfig())
	if err := h.driver.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.driver.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if guestGlobal(t, h.inst, "tick_count") != 1 {
		t.Error("legacy step export not called")
	}
}

func TestDriver_StartErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing step", func(t *testing.T) {
		h := newHarness(t, guesttest.Options{StepName: "advance"}, smallConfig())
		if err := h.driver.Start(ctx); !errors.Is(err, &hosterrors.Error{Kind: hosterrors.KindNotFound}) {
			t.Errorf("Start = %v", err)
		}
		if h.driver.State() != StateHalted {
			t.Errorf("state = %s", h.driver.State())
		}
	})

	t.Run("tick before start", func(t *testing.T) {
		h := newHarness(t, guesttest.Options{}, smallConfig())
		if err := h.driver.Tick(ctx); !errors.Is(err, hosterrors.ErrInvalidState) {
			t.Errorf("Tick = %v", err)
		}
		if h.driver.State() != StateUninitialized {
			t.Errorf("state = %s", h.driver.State())
		}
	})

	t.Run("boot image out of bounds", func(t *testing.T) {
		h := newHarness(t, guesttest.Options{BootOffset: guesttest.Pages*65536 - 2}, Config{
			Width: 4, Height: 4, BootImage: make([]byte, 16),
		})
		if err := h.driver.Start(ctx); !errors.Is(err, hosterrors.ErrOutOfBounds) {
			t.Errorf("Start = %v", err)
		}
	})
}

func TestDriver_PresenterErrorDoesNotHalt(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, guesttest.Options{}, smallConfig())
	h.frames.err = errors.New("display gone")
	if err := h.driver.Start(ctx); err != nil {
		t.Fatal(err)
	}

	err := h.driver.Tick(ctx)
	if err == nil || !errors.Is(err, h.frames.err) {
		t.Fatalf("Tick = %v", err)
	}
	if h.driver.State() != StateRunning {
		t.Errorf("state = %s", h.driver.State())
	}
	if err := h.driver.RunFrames(ctx, Immediate{}, 3); err != nil {
		t.Errorf("RunFrames = %v", err)
	}
	if h.driver.Stats().Ticks != 4 {
		t.Errorf("ticks = %d", h.driver.Stats().Ticks)
	}
}

func TestDriver_RunStopsOnContext(t *testing.T) {
	h := newHarness(t, guesttest.Options{}, smallConfig())
	if err := h.driver.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	clock := NewFrameClock(DefaultRefreshHz)
	defer clock.Stop()

	err := h.driver.Run(ctx, clock)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v", err)
	}
	if h.driver.State() == StateHalted {
		t.Error("cancellation halted the driver")
	}
}

type blockingGuest struct {
	entered chan struct{}
	release chan struct{}
	calls   int
}

func (g *blockingGuest) Call(_ context.Context, name string, _ ...uint64) ([]uint64, error) {
	g.calls++
	if name == "step" {
		g.entered <- struct{}{}
		<-g.release
	}
	return []uint64{0}, nil
}

func (g *blockingGuest) HasExport(name string) bool {
	return name != "deliver_input"
}

func (g *blockingGuest) Memory() api.Memory { return nil }

func TestDriver_BusyAndHaltDuringTick(t *testing.T) {
	ctx := context.Background()
	g := &blockingGuest{entered: make(chan struct{}), release: make(chan struct{})}
	d := New(g, nil, smallConfig())
	if err := d.Start(ctx); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Tick(ctx) }()
	<-g.entered

	if err := d.Tick(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("overlapping Tick = %v", err)
	}
	if errors.Is(ErrBusy, ErrHalted) {
		t.Error("ErrBusy matches ErrHalted")
	}

	d.Halt(nil)
	if d.State() != StateRunning {
		t.Errorf("halt applied mid-tick: %s", d.State())
	}
	close(g.release)
	<-done

	if d.State() != StateHalted {
		t.Errorf("state after tick = %s", d.State())
	}
}

func TestQuantum(t *testing.T) {
	tests := []struct {
		clock, refresh float64
		want           uint32
	}{
		{DefaultClockHz, DefaultRefreshHz, 70224},
		{1_000_000, 50, 20000},
		{1_000_000, 0, 0},
		{0, 60, 0},
	}
	for _, tt := range tests {
		if got := Quantum(tt.clock, tt.refresh); got != tt.want {
			t.Errorf("Quantum(%v, %v) = %d, want %d", tt.clock, tt.refresh, got, tt.want)
		}
	}

	if p := Period(50); p != 20*time.Millisecond {
		t.Errorf("Period(50) = %v", p)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateUninitialized: "uninitialized",
		StateReady:         "ready",
		StateRunning:       "running",
		StateHalted:        "halted",
		State(42):          "unknown",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q", s, s.String())
		}
	}
}
