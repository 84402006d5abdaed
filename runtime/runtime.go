package runtime

import (
	"bytes"
	"context"
	"os"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/simhost/config"
	"github.com/wippyai/simhost/diag"
	"github.com/wippyai/simhost/driver"
	"github.com/wippyai/simhost/engine"
	"github.com/wippyai/simhost/errors"
	"github.com/wippyai/simhost/linker"
	"github.com/wippyai/simhost/memory"
)

// GuestName is the module name the guest is instantiated under.
const GuestName = "guest"

// Options configures Load. Zero values select defaults: config.Default(), a
// zap-backed sink, no presenter, no input, no boot image.
type Options struct {
	Config    *config.Config
	Sink      diag.Sink
	Presenter driver.Presenter
	Input     driver.InputSource
	BootImage []byte
}

// Host is a loaded guest ready to be driven.
type Host struct {
	engine *engine.Engine
	module *engine.Module
	inst   *engine.Instance
	table  *linker.Table
	ch     *diag.Channel
	view   *memory.View
	driver *driver.Driver
	cfg    *config.Config

	bootOffset    uint32
	hasBootOffset bool
}

var _ linker.Handlers = (*Host)(nil)

var (
	wasmMagic     = []byte{0x00, 0x61, 0x73, 0x6D}
	componentHead = []byte{0x0D, 0x00, 0x01, 0x00}
)

// isComponent reports whether image is a component-model binary rather than
// a core module.
func isComponent(image []byte) bool {
	return len(image) >= 8 && bytes.Equal(image[:4], wasmMagic) && bytes.Equal(image[4:8], componentHead)
}

// Load compiles, links and instantiates image and wires a driver to it. A
// startup failure is reported to the sink as a fatal fault before it is
// returned.
func Load(ctx context.Context, image []byte, opts Options) (*Host, error) {
	sink := opts.Sink
	if sink == nil {
		sink = diag.NewZapSink(Logger())
	}
	ch := diag.NewChannel(sink)
	fail := func(err error) (*Host, error) {
		ch.ReportFault(err, true)
		return nil, err
	}

	if isComponent(image) {
		return fail(errors.LinkFailure("component binaries are not supported, expected a core module", nil))
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return fail(err)
	}

	eng := engine.New(ctx, &engine.Config{MemoryLimitPages: cfg.Module.MemoryLimitPages})

	mod, err := eng.Compile(ctx, image)
	if err != nil {
		eng.Close(ctx)
		return fail(err)
	}

	h := &Host{
		engine: eng,
		module: mod,
		ch:     ch,
		cfg:    cfg,
	}

	inst, table, err := linker.Link(ctx, eng, mod, h, GuestName)
	if err != nil {
		eng.Close(ctx)
		return fail(err)
	}
	h.inst = inst
	h.table = table
	h.view = memory.NewView(inst)

	var dopts []driver.Option
	if opts.Presenter != nil {
		dopts = append(dopts, driver.WithPresenter(opts.Presenter))
	}
	if opts.Input != nil {
		dopts = append(dopts, driver.WithInput(opts.Input))
	}
	h.driver = driver.New(inst, h.ch, cfg.DriverConfig(opts.BootImage), dopts...)
	if h.hasBootOffset {
		h.driver.NotifyBootImageOffset(h.bootOffset)
	}

	Logger().Info("guest loaded",
		zap.Int("imports", table.Len()),
		zap.Int("stubs", len(table.Stubs())),
		zap.Uint32("memory_bytes", h.view.Size()),
		zap.Uint32("quantum", cfg.Quantum()))
	return h, nil
}

// Log implements linker.Handlers.
func (h *Host) Log(_ context.Context, mod api.Module, ptr, length uint32) {
	h.ch.DecodeLog(memory.NewView(mod).WithPhase(errors.PhaseTick), ptr, length)
}

// Fatal implements linker.Handlers.
func (h *Host) Fatal(_ context.Context, _ api.Module, code uint32) {
	h.ch.ReportFatal(code)
}

// NotifyBootImageOffset implements linker.Handlers.
func (h *Host) NotifyBootImageOffset(_ context.Context, ptr uint32) {
	if h.driver == nil {
		h.bootOffset, h.hasBootOffset = ptr, true
		return
	}
	h.driver.NotifyBootImageOffset(ptr)
}

// Unimplemented implements linker.Handlers.
func (h *Host) Unimplemented(_ context.Context, module, name string, args []uint64) {
	h.ch.ReportUnimplemented(module, name, args)
}

// Driver returns the execution driver.
func (h *Host) Driver() *driver.Driver { return h.driver }

// Table returns the resolved import table.
func (h *Host) Table() *linker.Table { return h.table }

// Diagnostics returns the diagnostics channel.
func (h *Host) Diagnostics() *diag.Channel { return h.ch }

// View returns a view over the guest memory.
func (h *Host) View() *memory.View { return h.view }

// Instance returns the live guest.
func (h *Host) Instance() *engine.Instance { return h.inst }

// Config returns the effective configuration.
func (h *Host) Config() *config.Config { return h.cfg }

// Close halts the driver and releases the engine.
func (h *Host) Close(ctx context.Context) error {
	h.driver.Halt(nil)
	return h.engine.Close(ctx)
}

// LoadImage reads a module image from disk.
func LoadImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read module image "+path, err)
	}
	return data, nil
}

// Report describes a module image without instantiating it.
type Report struct {
	Table         *linker.Table
	Exports       []string
	ExportsMemory bool
}

type nopHandlers struct{}

func (nopHandlers) Log(context.Context, api.Module, uint32, uint32)         {}
func (nopHandlers) Fatal(context.Context, api.Module, uint32)               {}
func (nopHandlers) NotifyBootImageOffset(context.Context, uint32)           {}
func (nopHandlers) Unimplemented(context.Context, string, string, []uint64) {}

// Inspect compiles image and reports how its imports would resolve.
func Inspect(ctx context.Context, image []byte) (*Report, error) {
	eng := engine.New(ctx, nil)
	defer eng.Close(ctx)

	mod, err := eng.Compile(ctx, image)
	if err != nil {
		return nil, err
	}
	return &Report{
		Table:         linker.Resolve(mod.Imports(), nopHandlers{}),
		Exports:       mod.Exports(),
		ExportsMemory: mod.ExportsMemory(),
	}, nil
}
