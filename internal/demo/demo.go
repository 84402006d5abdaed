// Package demo builds the guest behind the "simhost demo" command: a
// 160x144 gradient that scrolls with the frame count and tints with input
// and the first boot-image byte.
package demo

import "github.com/wippyai/simhost/internal/wasmbin"

const (
	Width             = 160
	Height            = 144
	FrameBufferOffset = 0x1000
	BootImageOffset   = 0x18000
	BootImageSize     = 0x100

	readyOffset  = 0x100
	minuteOffset = 0x120
)

// Messages the guest logs.
const (
	ReadyMessage = "demo guest ready"
	SixtyMessage = "sixty frames"
)

const (
	setupToken    = 1
	pixels        = Width * Height
	logEveryTicks = 60
)

// Image returns the encoded guest module.
func Image() []byte {
	i32 := wasmbin.I32
	m := wasmbin.NewModule()

	logFn := m.ImportFunc("env", "log", []wasmbin.ValType{i32, i32}, nil)
	notifyFn := m.ImportFunc("env", "notify_boot_image_offset", []wasmbin.ValType{i32}, nil)

	m.Memory(2, nil)
	m.Data(readyOffset, []byte(ReadyMessage))
	m.Data(minuteOffset, []byte(SixtyMessage))

	frame := m.Global(0)
	input := m.Global(0)
	cycles := m.Global(0)

	m.Export("setup", m.Func(nil, []wasmbin.ValType{i32}, nil, wasmbin.NewCode().
		I32Const(BootImageOffset).Call(notifyFn).
		I32Const(readyOffset).I32Const(int32(len(ReadyMessage))).Call(logFn).
		I32Const(setupToken)))

	m.Export("get_frame_buffer_offset", m.Func([]wasmbin.ValType{i32}, []wasmbin.ValType{i32}, nil,
		wasmbin.NewCode().I32Const(FrameBufferOffset)))

	m.Export("deliver_input", m.Func([]wasmbin.ValType{i32, i32}, nil, nil,
		wasmbin.NewCode().LocalGet(1).GlobalSet(input)))

	// params: token, cycles; locals: i, p
	const i, p = 2, 3
	step := wasmbin.NewCode().
		GlobalGet(cycles).LocalGet(1).I32Add().GlobalSet(cycles).
		GlobalGet(frame).I32Const(1).I32Add().GlobalSet(frame).
		I32Const(0).LocalSet(i).
		Block().Loop().
		LocalGet(i).I32Const(pixels).I32GeU().BrIf(1).
		LocalGet(i).I32Const(4).I32Mul().I32Const(FrameBufferOffset).I32Add().LocalSet(p).
		// red: x + frame
		LocalGet(p).
		LocalGet(i).I32Const(Width).I32RemU().GlobalGet(frame).I32Add().
		I32Store8(0).
		// green: y + 2*frame
		LocalGet(p).
		LocalGet(i).I32Const(Width).I32DivU().GlobalGet(frame).I32Const(1).I32Shl().I32Add().
		I32Store8(1).
		// blue: boot[0] + input<<5
		LocalGet(p).
		I32Const(0).I32Load8U(BootImageOffset).GlobalGet(input).I32Const(5).I32Shl().I32Add().
		I32Store8(2).
		LocalGet(p).I32Const(255).I32Store8(3).
		LocalGet(i).I32Const(1).I32Add().LocalSet(i).
		Br(0).
		End().End().
		GlobalGet(frame).I32Const(logEveryTicks).I32RemU().I32Eqz().If().
		I32Const(minuteOffset).I32Const(int32(len(SixtyMessage))).Call(logFn).
		End()
	m.Export("step", m.Func([]wasmbin.ValType{i32, i32}, nil, []wasmbin.ValType{i32, i32}, step))

	m.ExportMemory("memory")
	return m.Encode()
}

// BootImage returns a boot image whose first byte sets the base blue level.
func BootImage(blue byte) []byte {
	img := make([]byte, BootImageSize)
	img[0] = blue
	return img
}

// Pixel returns the RGBA value the guest draws at (x, y) on tick n.
func Pixel(x, y int, n uint32, input uint32, blue byte) [4]byte {
	return [4]byte{
		byte(uint32(x) + n),
		byte(uint32(y) + 2*n),
		byte(uint32(blue) + input<<5),
		255,
	}
}
