package wasmbin

const (
	opUnreachable byte = 0x00
	opBlock       byte = 0x02
	opLoop        byte = 0x03
	opIf          byte = 0x04
	opElse        byte = 0x05
	opEnd         byte = 0x0B
	opBr          byte = 0x0C
	opBrIf        byte = 0x0D
	opReturn      byte = 0x0F
	opCall        byte = 0x10
	opDrop        byte = 0x1A
	opLocalGet    byte = 0x20
	opLocalSet    byte = 0x21
	opLocalTee    byte = 0x22
	opGlobalGet   byte = 0x23
	opGlobalSet   byte = 0x24
	opI32Load     byte = 0x28
	opI32Load8U   byte = 0x2D
	opI32Store    byte = 0x36
	opI32Store8   byte = 0x3A
	opMemorySize  byte = 0x3F
	opMemoryGrow  byte = 0x40
	opI32Const    byte = 0x41
	opI64Const    byte = 0x42
	opI32Eqz      byte = 0x45
	opI32Eq       byte = 0x46
	opI32Ne       byte = 0x47
	opI32LtU      byte = 0x49
	opI32GeU      byte = 0x4F
	opI32Add      byte = 0x6A
	opI32Sub      byte = 0x6B
	opI32Mul      byte = 0x6C
	opI32DivU     byte = 0x6E
	opI32RemU     byte = 0x70
	opI32And      byte = 0x71
	opI32Or       byte = 0x72
	opI32Xor      byte = 0x73
	opI32Shl      byte = 0x74
	opI32ShrU     byte = 0x76
	opI32WrapI64  byte = 0xA7

	blockVoid byte = 0x40
)

// Code assembles a function body. Bytes appends the final end opcode.
type Code struct {
	w writer
}

// NewCode returns an empty body.
func NewCode() *Code {
	return &Code{}
}

func (c *Code) op(b byte) *Code {
	c.w.byte(b)
	return c
}

func (c *Code) memarg(align, offset uint32) *Code {
	c.w.u32(align)
	c.w.u32(offset)
	return c
}

// Bytes returns the body terminated by end.
func (c *Code) Bytes() []byte {
	out := make([]byte, 0, c.w.buf.Len()+1)
	out = append(out, c.w.bytes()...)
	return append(out, opEnd)
}

func (c *Code) Unreachable() *Code { return c.op(opUnreachable) }
func (c *Code) Return() *Code      { return c.op(opReturn) }
func (c *Code) Drop() *Code        { return c.op(opDrop) }

// Block opens a void block; close it with End.
func (c *Code) Block() *Code { return c.op(opBlock).op(blockVoid) }

// Loop opens a void loop; close it with End.
func (c *Code) Loop() *Code { return c.op(opLoop).op(blockVoid) }

// If opens a void if; close it with End.
func (c *Code) If() *Code   { return c.op(opIf).op(blockVoid) }
func (c *Code) Else() *Code { return c.op(opElse) }
func (c *Code) End() *Code  { return c.op(opEnd) }

func (c *Code) Br(depth uint32) *Code {
	c.op(opBr)
	c.w.u32(depth)
	return c
}

func (c *Code) BrIf(depth uint32) *Code {
	c.op(opBrIf)
	c.w.u32(depth)
	return c
}

func (c *Code) Call(funcIdx uint32) *Code {
	c.op(opCall)
	c.w.u32(funcIdx)
	return c
}

func (c *Code) LocalGet(idx uint32) *Code {
	c.op(opLocalGet)
	c.w.u32(idx)
	return c
}

func (c *Code) LocalSet(idx uint32) *Code {
	c.op(opLocalSet)
	c.w.u32(idx)
	return c
}

func (c *Code) LocalTee(idx uint32) *Code {
	c.op(opLocalTee)
	c.w.u32(idx)
	return c
}

func (c *Code) GlobalGet(idx uint32) *Code {
	c.op(opGlobalGet)
	c.w.u32(idx)
	return c
}

func (c *Code) GlobalSet(idx uint32) *Code {
	c.op(opGlobalSet)
	c.w.u32(idx)
	return c
}

func (c *Code) I32Const(v int32) *Code {
	c.op(opI32Const)
	c.w.s64(int64(v))
	return c
}

func (c *Code) I64Const(v int64) *Code {
	c.op(opI64Const)
	c.w.s64(v)
	return c
}

// I32Load loads a 32-bit value from address+offset (alignment 4).
func (c *Code) I32Load(offset uint32) *Code   { return c.op(opI32Load).memarg(2, offset) }
func (c *Code) I32Load8U(offset uint32) *Code { return c.op(opI32Load8U).memarg(0, offset) }
func (c *Code) I32Store(offset uint32) *Code  { return c.op(opI32Store).memarg(2, offset) }
func (c *Code) I32Store8(offset uint32) *Code { return c.op(opI32Store8).memarg(0, offset) }

// MemorySize pushes the memory size in pages.
func (c *Code) MemorySize() *Code { return c.op(opMemorySize).op(0x00) }

// MemoryGrow grows memory by the popped page count and pushes the old size or -1.
func (c *Code) MemoryGrow() *Code { return c.op(opMemoryGrow).op(0x00) }

func (c *Code) I32Eqz() *Code     { return c.op(opI32Eqz) }
func (c *Code) I32Eq() *Code      { return c.op(opI32Eq) }
func (c *Code) I32Ne() *Code      { return c.op(opI32Ne) }
func (c *Code) I32LtU() *Code     { return c.op(opI32LtU) }
func (c *Code) I32GeU() *Code     { return c.op(opI32GeU) }
func (c *Code) I32Add() *Code     { return c.op(opI32Add) }
func (c *Code) I32Sub() *Code     { return c.op(opI32Sub) }
func (c *Code) I32Mul() *Code     { return c.op(opI32Mul) }
func (c *Code) I32DivU() *Code    { return c.op(opI32DivU) }
func (c *Code) I32RemU() *Code    { return c.op(opI32RemU) }
func (c *Code) I32And() *Code     { return c.op(opI32And) }
func (c *Code) I32Or() *Code      { return c.op(opI32Or) }
func (c *Code) I32Xor() *Code     { return c.op(opI32Xor) }
func (c *Code) I32Shl() *Code     { return c.op(opI32Shl) }
func (c *Code) I32ShrU() *Code    { return c.op(opI32ShrU) }
func (c *Code) I32WrapI64() *Code { return c.op(opI32WrapI64) }
