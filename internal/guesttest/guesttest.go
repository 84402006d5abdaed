// Package guesttest builds small guest modules that follow the simulator
// guest contract, for use in tests across the host packages.
package guesttest

import (
	"github.com/wippyai/simhost/internal/wasmbin"
)

const (
	// Token is what setup returns.
	Token = 0x40
	// HelloOffset holds the bytes "hello".
	HelloOffset = 100
	// DefaultFrameBufferOffset is where step writes its frame unless overridden.
	DefaultFrameBufferOffset = 0x1000
	// Pages is the initial memory size.
	Pages = 2
)

// Options shapes the generated guest.
type Options struct {
	// ImportModule defaults to "env".
	ImportModule string
	// LogName and FatalName default to "log" and "fatal".
	LogName   string
	FatalName string
	// StepName defaults to "step".
	StepName string
	// Extras are additional (i32, i32) -> i32 imports the host does not provide.
	// Each one gets a "call_<name>" export that forwards its arguments.
	Extras []string

	FrameBufferOffset uint32
	// BootOffset, when non-zero, is announced from setup.
	BootOffset uint32
	FatalCode  uint32
	// FatalAtTick, TrapAtTick and GrowAtTick fire when the tick counter
	// reaches the value; zero disables them.
	FatalAtTick int32
	TrapAtTick  int32
	GrowAtTick  int32

	LogEveryStep bool
	NoInput      bool
	NoMemory     bool
}

// Build encodes the guest described by opts.
//
// The guest keeps three globals: the tick counter, the last delivered input
// and the cycle total. step increments the tick, adds its cycle argument, and
// writes tick, input and the first boot byte as three u32 values at the
// frame-buffer offset when that lies inside the initial memory.
func Build(opts Options) []byte {
	if opts.ImportModule == "" {
		opts.ImportModule = "env"
	}
	if opts.LogName == "" {
		opts.LogName = "log"
	}
	if opts.FatalName == "" {
		opts.FatalName = "fatal"
	}
	if opts.StepName == "" {
		opts.StepName = "step"
	}
	if opts.FrameBufferOffset == 0 {
		opts.FrameBufferOffset = DefaultFrameBufferOffset
	}
	if opts.FatalCode == 0 {
		opts.FatalCode = 7
	}

	i32 := wasmbin.I32
	m := wasmbin.NewModule()

	logFn := m.ImportFunc(opts.ImportModule, opts.LogName, []wasmbin.ValType{i32, i32}, nil)
	fatalFn := m.ImportFunc(opts.ImportModule, opts.FatalName, []wasmbin.ValType{i32}, nil)
	notifyFn := m.ImportFunc(opts.ImportModule, "notify_boot_image_offset", []wasmbin.ValType{i32}, nil)

	extras := make([]uint32, len(opts.Extras))
	for i, name := range opts.Extras {
		extras[i] = m.ImportFunc(opts.ImportModule, name, []wasmbin.ValType{i32, i32}, []wasmbin.ValType{i32})
	}

	if !opts.NoMemory {
		m.Memory(Pages, nil)
		m.Data(HelloOffset, []byte("hello"))
	}

	tick := m.Global(0)
	input := m.Global(0)
	cycles := m.Global(0)

	setup := wasmbin.NewCode()
	if opts.BootOffset != 0 {
		setup.I32Const(int32(opts.BootOffset)).Call(notifyFn)
	}
	setup.I32Const(Token)
	m.Export("setup", m.Func(nil, []wasmbin.ValType{i32}, nil, setup))

	m.Export("get_frame_buffer_offset", m.Func([]wasmbin.ValType{i32}, []wasmbin.ValType{i32}, nil,
		wasmbin.NewCode().I32Const(int32(opts.FrameBufferOffset))))

	step := wasmbin.NewCode().
		GlobalGet(tick).I32Const(1).I32Add().GlobalSet(tick).
		GlobalGet(cycles).LocalGet(1).I32Add().GlobalSet(cycles)

	if opts.GrowAtTick > 0 && !opts.NoMemory {
		step.GlobalGet(tick).I32Const(opts.GrowAtTick).I32Eq().If().
			I32Const(1).MemoryGrow().Drop().
			End()
	}

	fb := int64(opts.FrameBufferOffset)
	if !opts.NoMemory && fb+12 <= Pages*65536 {
		step.I32Const(int32(fb)).GlobalGet(tick).I32Store(0).
			I32Const(int32(fb)).GlobalGet(input).I32Store(4)
		if opts.BootOffset != 0 && int64(opts.BootOffset) < Pages*65536 {
			step.I32Const(int32(fb)).I32Const(int32(opts.BootOffset)).I32Load8U(0).I32Store(8)
		}
	}

	if opts.LogEveryStep {
		step.I32Const(HelloOffset).I32Const(5).Call(logFn)
	}
	if opts.FatalAtTick > 0 {
		step.GlobalGet(tick).I32Const(opts.FatalAtTick).I32Eq().If().
			I32Const(int32(opts.FatalCode)).Call(fatalFn).
			End()
	}
	if opts.TrapAtTick > 0 {
		step.GlobalGet(tick).I32Const(opts.TrapAtTick).I32Eq().If().
			Unreachable().
			End()
	}
	m.Export(opts.StepName, m.Func([]wasmbin.ValType{i32, i32}, nil, nil, step))

	if !opts.NoInput {
		m.Export("deliver_input", m.Func([]wasmbin.ValType{i32, i32}, nil, nil,
			wasmbin.NewCode().LocalGet(1).GlobalSet(input)))
	}

	m.Export("log_at", m.Func([]wasmbin.ValType{i32, i32}, nil, nil,
		wasmbin.NewCode().LocalGet(0).LocalGet(1).Call(logFn)))
	m.Export("fatal_now", m.Func([]wasmbin.ValType{i32}, nil, nil,
		wasmbin.NewCode().LocalGet(0).Call(fatalFn)))
	m.Export("tick_count", m.Func(nil, []wasmbin.ValType{i32}, nil,
		wasmbin.NewCode().GlobalGet(tick)))
	m.Export("cycle_total", m.Func(nil, []wasmbin.ValType{i32}, nil,
		wasmbin.NewCode().GlobalGet(cycles)))

	if !opts.NoMemory {
		m.Export("grow", m.Func([]wasmbin.ValType{i32}, []wasmbin.ValType{i32}, nil,
			wasmbin.NewCode().LocalGet(0).MemoryGrow()))
		m.ExportMemory("memory")
	}

	for i, name := range opts.Extras {
		m.Export("call_"+name, m.Func([]wasmbin.ValType{i32, i32}, []wasmbin.ValType{i32}, nil,
			wasmbin.NewCode().LocalGet(0).LocalGet(1).Call(extras[i])))
	}

	return m.Encode()
}
