package driver

import (
	"context"
	"sync"

	"github.com/rs/xid"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/simhost/diag"
	"github.com/wippyai/simhost/errors"
	"github.com/wippyai/simhost/memory"
)

// BytesPerPixel is the frame-buffer pixel size (RGBA).
const BytesPerPixel = 4

var (
	// ErrHalted is returned by Tick once the driver has halted.
	ErrHalted = &errors.Error{Phase: errors.PhaseTick, Kind: errors.KindInvalidState, Detail: "driver halted"}
	// ErrBusy is returned by a Tick that overlaps one already in flight.
	ErrBusy = &errors.Error{Phase: errors.PhaseTick, Kind: errors.KindInvalidState, Detail: "tick already in flight"}

	errPresentation = &errors.Error{Phase: errors.PhasePresent, Kind: errors.KindPresentation}
)

// Guest is the live guest as the driver sees it. *engine.Instance satisfies it.
type Guest interface {
	Call(ctx context.Context, name string, args ...uint64) ([]uint64, error)
	HasExport(name string) bool
	Memory() api.Memory
}

// Presenter receives each completed frame. The slice is guest memory lent for
// the duration of the call and must not be retained.
type Presenter interface {
	Present(frame []byte) error
}

// InputSource supplies the controller bitmask delivered before each tick.
type InputSource interface {
	Snapshot() uint32
}

// Exports names the guest entry points.
type Exports struct {
	Setup       string
	FrameBuffer string
	Step        string
	Input       string
}

// DefaultExports returns the standard guest entry point names.
func DefaultExports() Exports {
	return Exports{
		Setup:       "setup",
		FrameBuffer: "get_frame_buffer_offset",
		Step:        "step",
		Input:       "deliver_input",
	}
}

// legacyStep is the step entry point name older guests export.
const legacyStep = "cycle"

// Config configures a driver.
type Config struct {
	Exports       Exports
	BootImage     []byte
	Width         uint32
	Height        uint32
	CyclesPerTick uint32
}

func (c *Config) applyDefaults() {
	d := DefaultExports()
	if c.Exports.Setup == "" {
		c.Exports.Setup = d.Setup
	}
	if c.Exports.FrameBuffer == "" {
		c.Exports.FrameBuffer = d.FrameBuffer
	}
	if c.Exports.Step == "" {
		c.Exports.Step = d.Step
	}
	if c.Exports.Input == "" {
		c.Exports.Input = d.Input
	}
	if c.Width == 0 {
		c.Width = 160
	}
	if c.Height == 0 {
		c.Height = 144
	}
	if c.CyclesPerTick == 0 {
		c.CyclesPerTick = Quantum(DefaultClockHz, DefaultRefreshHz)
	}
}

// FrameSize returns width*height*BytesPerPixel.
func (c Config) FrameSize() uint32 {
	return c.Width * c.Height * BytesPerPixel
}

// Session is the per-run state established by Start.
type Session struct {
	ID                 string
	Token              uint32
	FrameBufferOffset  uint32
	BootImageOffset    uint32
	HasBootImageOffset bool
}

// Stats counts driver progress.
type Stats struct {
	State  State
	Ticks  uint64
	Cycles uint64
	Frames uint64
}

// Option configures a Driver.
type Option func(*Driver)

// WithPresenter sets the frame consumer.
func WithPresenter(p Presenter) Option {
	return func(d *Driver) { d.presenter = p }
}

// WithInput sets the input source.
func WithInput(in InputSource) Option {
	return func(d *Driver) { d.input = in }
}

// Driver owns the guest's execution. Tick, Start and Run must be called from
// one goroutine at a time; State, Stats, Session and Halt are safe from any.
type Driver struct {
	guest     Guest
	ch        *diag.Channel
	view      *memory.View
	presenter Presenter
	input     InputSource
	err       error
	halt      error
	cfg       Config
	session   Session
	stats     Stats
	stepName  string
	mu        sync.Mutex
	state     State
	busy      bool
	hasInput  bool
	haltReq   bool
}

// New creates a driver for a linked guest. ch receives every diagnostic the
// guest and driver produce; it must be the same channel the guest's fatal
// import reports to.
func New(guest Guest, ch *diag.Channel, cfg Config, opts ...Option) *Driver {
	cfg.applyDefaults()
	if ch == nil {
		ch = diag.NewChannel(nil)
	}
	d := &Driver{
		guest: guest,
		ch:    ch,
		view:  memory.NewView(guest).WithPhase(errors.PhaseTick),
		cfg:   cfg,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NotifyBootImageOffset records where the guest wants the boot image. The
// guest calls it during setup.
func (d *Driver) NotifyBootImageOffset(ptr uint32) {
	d.mu.Lock()
	d.session.BootImageOffset = ptr
	d.session.HasBootImageOffset = true
	d.mu.Unlock()
	Logger().Debug("guest announced boot image offset", zap.Uint32("offset", ptr))
}

// Start runs guest setup and moves the driver to Ready.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateUninitialized {
		state := d.state
		d.mu.Unlock()
		return errors.InvalidState(errors.PhaseSetup, "start", state.String())
	}
	d.busy = true
	d.session.ID = xid.New().String()
	d.mu.Unlock()

	d.ch.SetSession(d.session.ID)
	err := d.start(ctx)

	d.mu.Lock()
	d.busy = false
	if err != nil {
		d.haltLocked(err)
	} else if d.state == StateUninitialized {
		d.state = StateReady
	}
	d.applyHaltRequestLocked()
	session := d.session
	d.mu.Unlock()

	if err != nil {
		return err
	}
	Logger().Info("session started",
		zap.String("session", session.ID),
		zap.Uint32("token", session.Token),
		zap.Uint32("frame_buffer", session.FrameBufferOffset),
		zap.String("step", d.stepName))
	return nil
}

func (d *Driver) start(ctx context.Context) error {
	exp := d.cfg.Exports
	for _, name := range []string{exp.Setup, exp.FrameBuffer} {
		if !d.guest.HasExport(name) {
			return errors.NotFound(errors.PhaseSetup, "export", name)
		}
	}

	d.stepName = exp.Step
	if !d.guest.HasExport(d.stepName) {
		if !d.guest.HasExport(legacyStep) {
			return errors.NotFound(errors.PhaseSetup, "export", exp.Step)
		}
		d.stepName = legacyStep
	}
	d.hasInput = d.input != nil && d.guest.HasExport(exp.Input)

	res, err := d.call(ctx, errors.PhaseSetup, exp.Setup)
	if err != nil {
		return err
	}
	token := firstU32(res)

	res, err = d.call(ctx, errors.PhaseSetup, exp.FrameBuffer, api.EncodeU32(token))
	if err != nil {
		return err
	}
	fb := firstU32(res)

	d.mu.Lock()
	d.session.Token = token
	d.session.FrameBufferOffset = fb
	bootOffset, hasBoot := d.session.BootImageOffset, d.session.HasBootImageOffset
	d.mu.Unlock()

	if len(d.cfg.BootImage) > 0 {
		if hasBoot {
			if err := d.view.WithPhase(errors.PhaseSetup).Write(bootOffset, d.cfg.BootImage); err != nil {
				d.ch.ReportFault(err, true)
				return err
			}
		} else {
			Logger().Warn("boot image supplied but guest announced no offset",
				zap.Int("bytes", len(d.cfg.BootImage)))
		}
	}

	if d.hasInput {
		if _, err := d.call(ctx, errors.PhaseSetup, exp.Input, api.EncodeU32(token), api.EncodeU32(d.input.Snapshot())); err != nil {
			return err
		}
	}
	return nil
}

// call invokes a guest export and classifies failure: a fatal recorded on the
// channel wins over whatever error unwound the call.
func (d *Driver) call(ctx context.Context, phase errors.Phase, name string, args ...uint64) ([]uint64, error) {
	res, err := d.guest.Call(ctx, name, args...)
	if code, fatal := d.ch.Fatal(); fatal {
		gf := errors.GuestFatal(code)
		gf.Phase = phase
		return nil, gf
	}
	if err != nil {
		trap := errors.GuestTrap(phase, name, err)
		d.ch.ReportFault(trap, true)
		return nil, trap
	}
	return res, nil
}

func firstU32(res []uint64) uint32 {
	if len(res) == 0 {
		return 0
	}
	return api.DecodeU32(res[0])
}

// Tick runs one frame: input, step, then frame hand-off.
func (d *Driver) Tick(ctx context.Context) error {
	d.mu.Lock()
	switch {
	case d.state == StateHalted:
		d.mu.Unlock()
		return ErrHalted
	case d.busy:
		d.mu.Unlock()
		return ErrBusy
	case d.state == StateUninitialized:
		d.mu.Unlock()
		return errors.InvalidState(errors.PhaseTick, "tick", StateUninitialized.String())
	}
	d.busy = true
	d.state = StateRunning
	d.stats.Ticks++
	tick := d.stats.Ticks
	session := d.session
	d.mu.Unlock()

	err := d.tick(ctx, tick, session)

	d.mu.Lock()
	d.busy = false
	if err != nil && !errors.Is(err, errPresentation) {
		d.haltLocked(err)
	}
	d.applyHaltRequestLocked()
	d.mu.Unlock()
	return err
}

func (d *Driver) tick(ctx context.Context, tick uint64, session Session) error {
	d.ch.SetTick(tick)
	token := api.EncodeU32(session.Token)

	if d.hasInput {
		if _, err := d.call(ctx, errors.PhaseTick, d.cfg.Exports.Input, token, api.EncodeU32(d.input.Snapshot())); err != nil {
			return err
		}
	}

	_, err := d.call(ctx, errors.PhaseTick, d.stepName, token, api.EncodeU32(d.cfg.CyclesPerTick))

	d.mu.Lock()
	d.stats.Cycles += uint64(d.cfg.CyclesPerTick)
	d.mu.Unlock()

	if err != nil {
		return err
	}

	var presentErr error
	err = d.view.Borrow(session.FrameBufferOffset, d.cfg.FrameSize(), func(frame []byte) error {
		if d.presenter != nil {
			presentErr = d.presenter.Present(frame)
		}
		return nil
	})
	if err != nil {
		d.ch.ReportFault(err, true)
		return err
	}

	d.mu.Lock()
	d.stats.Frames++
	d.mu.Unlock()

	if presentErr != nil {
		Logger().Warn("presenter failed", zap.Uint64("tick", tick), zap.Error(presentErr))
		return errors.New(errors.PhasePresent, errors.KindPresentation).
			Detail("presenter rejected frame").
			Cause(presentErr).
			Build()
	}
	return nil
}

// Halt stops the driver. A tick in flight completes first; reason becomes Err.
func (d *Driver) Halt(reason error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateHalted {
		return
	}
	d.halt = reason
	d.haltReq = true
	if !d.busy {
		d.applyHaltRequestLocked()
	}
}

func (d *Driver) applyHaltRequestLocked() {
	if d.haltReq && d.state != StateHalted {
		d.state = StateHalted
		d.err = d.halt
		Logger().Info("driver halted by request", zap.Uint64("ticks", d.stats.Ticks), zap.Error(d.halt))
	}
	d.haltReq = false
}

func (d *Driver) haltLocked(err error) {
	if d.state == StateHalted {
		return
	}
	d.state = StateHalted
	d.err = err
	Logger().Warn("driver halted",
		zap.String("session", d.session.ID),
		zap.Uint64("ticks", d.stats.Ticks),
		zap.Error(err))
}

// Run ticks on every scheduler signal until the driver halts or ctx is done.
func (d *Driver) Run(ctx context.Context, s Scheduler) error {
	return d.RunFrames(ctx, s, 0)
}

// RunFrames is Run with a limit of n ticks; n == 0 means no limit. It returns
// nil on reaching the limit or an explicit Halt(nil), the halt reason otherwise.
// Presenter failures are logged and do not stop the loop.
func (d *Driver) RunFrames(ctx context.Context, s Scheduler, n uint64) error {
	var done uint64
	for n == 0 || done < n {
		if d.State() == StateHalted {
			return d.Err()
		}
		if err := s.Wait(ctx); err != nil {
			return err
		}
		err := d.Tick(ctx)
		switch {
		case err == nil, errors.Is(err, errPresentation):
		case errors.Is(err, ErrHalted):
			return d.Err()
		case errors.Is(err, ErrBusy):
			continue
		default:
			return err
		}
		done++
	}
	return nil
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Session returns the session established by Start.
func (d *Driver) Session() Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// Stats returns a snapshot of progress counters.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.State = d.state
	return s
}

// Err returns why the driver halted, or nil.
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Config returns the effective configuration.
func (d *Driver) Config() Config {
	return d.cfg
}

// View returns the driver's view of guest memory.
func (d *Driver) View() *memory.View {
	return d.view
}
