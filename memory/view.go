// Package memory provides a re-derived, bounds-checked view over guest linear memory.
package memory

import (
	"reflect"

	"github.com/tetratelabs/wazero/api"

	simhost "github.com/wippyai/simhost"
	"github.com/wippyai/simhost/errors"
)

// Source yields the guest's current memory. api.Module satisfies it.
type Source interface {
	Memory() api.Memory
}

// SourceFunc adapts a function to Source.
type SourceFunc func() api.Memory

// Memory implements Source.
func (f SourceFunc) Memory() api.Memory { return f() }

// View is a window over guest memory addressed purely by offset.
//
// A View never caches the memory or any slice of it: each access asks the
// Source for the memory again and checks bounds against its size at that
// moment, so growth inside a guest call cannot leave the host with a stale view.
type View struct {
	src   Source
	phase errors.Phase
}

var (
	_ simhost.Memory      = (*View)(nil)
	_ simhost.MemorySizer = (*View)(nil)
)

// NewView creates a view over src. Errors are tagged with PhaseMemory.
func NewView(src Source) *View {
	return &View{src: src, phase: errors.PhaseMemory}
}

// WithPhase returns a copy of the view that tags its errors with phase.
func (v *View) WithPhase(phase errors.Phase) *View {
	return &View{src: v.src, phase: phase}
}

func (v *View) current() (api.Memory, error) {
	if v == nil || v.src == nil {
		return nil, errors.New(v.errPhase(), errors.KindOutOfBounds).Detail("no guest memory").Build()
	}
	mem := v.src.Memory()
	if !isValidMemory(mem) {
		return nil, errors.New(v.phase, errors.KindOutOfBounds).Detail("guest exports no memory").Build()
	}
	return mem, nil
}

func (v *View) errPhase() errors.Phase {
	if v == nil {
		return errors.PhaseMemory
	}
	return v.phase
}

// check re-derives the memory and verifies [offset, offset+length) lies within it.
func (v *View) check(offset uint32, length uint64) (api.Memory, error) {
	mem, err := v.current()
	if err != nil {
		return nil, err
	}
	size := mem.Size()
	if uint64(offset)+length > uint64(size) {
		return nil, errors.OutOfBounds(v.phase, uint64(offset), length, size)
	}
	return mem, nil
}

// isValidMemory rejects nil and typed-nil memories.
func isValidMemory(mem api.Memory) bool {
	if mem == nil {
		return false
	}
	return !reflect.ValueOf(mem).IsNil()
}

// Size returns the current memory size in bytes, or 0 when the guest has no memory.
func (v *View) Size() uint32 {
	mem, err := v.current()
	if err != nil {
		return 0
	}
	return mem.Size()
}

// Read copies length bytes starting at offset.
func (v *View) Read(offset uint32, length uint32) ([]byte, error) {
	var out []byte
	err := v.Borrow(offset, length, func(b []byte) error {
		out = append(make([]byte, 0, len(b)), b...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Borrow lends the live bytes in [offset, offset+length) to fn.
// The slice is valid only until fn returns and must not be retained.
func (v *View) Borrow(offset uint32, length uint32, fn func([]byte) error) error {
	mem, err := v.check(offset, uint64(length))
	if err != nil {
		return err
	}
	b, ok := mem.Read(offset, length)
	if !ok {
		return errors.OutOfBounds(v.phase, uint64(offset), uint64(length), mem.Size())
	}
	return fn(b)
}

// Write copies data into guest memory at offset.
func (v *View) Write(offset uint32, data []byte) error {
	mem, err := v.check(offset, uint64(len(data)))
	if err != nil {
		return err
	}
	if !mem.Write(offset, data) {
		return errors.OutOfBounds(v.phase, uint64(offset), uint64(len(data)), mem.Size())
	}
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (v *View) ReadU8(offset uint32) (uint8, error) {
	mem, err := v.check(offset, 1)
	if err != nil {
		return 0, err
	}
	b, _ := mem.ReadByte(offset)
	return b, nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (v *View) ReadU16(offset uint32) (uint16, error) {
	mem, err := v.check(offset, 2)
	if err != nil {
		return 0, err
	}
	n, _ := mem.ReadUint16Le(offset)
	return n, nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (v *View) ReadU32(offset uint32) (uint32, error) {
	mem, err := v.check(offset, 4)
	if err != nil {
		return 0, err
	}
	n, _ := mem.ReadUint32Le(offset)
	return n, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (v *View) ReadU64(offset uint32) (uint64, error) {
	mem, err := v.check(offset, 8)
	if err != nil {
		return 0, err
	}
	n, _ := mem.ReadUint64Le(offset)
	return n, nil
}

// WriteU8 writes an unsigned 8-bit value.
func (v *View) WriteU8(offset uint32, value uint8) error {
	mem, err := v.check(offset, 1)
	if err != nil {
		return err
	}
	mem.WriteByte(offset, value)
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (v *View) WriteU16(offset uint32, value uint16) error {
	mem, err := v.check(offset, 2)
	if err != nil {
		return err
	}
	mem.WriteUint16Le(offset, value)
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (v *View) WriteU32(offset uint32, value uint32) error {
	mem, err := v.check(offset, 4)
	if err != nil {
		return err
	}
	mem.WriteUint32Le(offset, value)
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (v *View) WriteU64(offset uint32, value uint64) error {
	mem, err := v.check(offset, 8)
	if err != nil {
		return err
	}
	mem.WriteUint64Le(offset, value)
	return nil
}
