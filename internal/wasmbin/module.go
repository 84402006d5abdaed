package wasmbin

import "fmt"

// ValType is a core value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

const (
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionMemory   byte = 5
	sectionGlobal   byte = 6
	sectionExport   byte = 7
	sectionCode     byte = 10
	sectionData     byte = 11

	kindFunc   byte = 0
	kindMemory byte = 2
	kindGlobal byte = 3
)

type funcType struct {
	params  []ValType
	results []ValType
}

type funcImport struct {
	module  string
	name    string
	typeIdx uint32
}

type funcDef struct {
	typeIdx uint32
	locals  []ValType
	body    []byte
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type global struct {
	init int32
}

type data struct {
	offset uint32
	init   []byte
}

// Module accumulates the pieces of a core module. Imports must be declared
// before any function is defined so indices stay stable.
type Module struct {
	memMax  *uint32
	types   []funcType
	imports []funcImport
	funcs   []funcDef
	globals []global
	exports []export
	data    []data
	memMin  uint32
	hasMem  bool
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{}
}

func (m *Module) typeIndex(params, results []ValType) uint32 {
	for i, t := range m.types {
		if equalTypes(t.params, params) && equalTypes(t.results, results) {
			return uint32(i)
		}
	}
	m.types = append(m.types, funcType{params: params, results: results})
	return uint32(len(m.types) - 1)
}

// ImportFunc declares a function import and returns its function index.
func (m *Module) ImportFunc(module, name string, params, results []ValType) uint32 {
	if len(m.funcs) > 0 {
		panic(fmt.Sprintf("wasmbin: import %s.%s declared after a function definition", module, name))
	}
	m.imports = append(m.imports, funcImport{
		module:  module,
		name:    name,
		typeIdx: m.typeIndex(params, results),
	})
	return uint32(len(m.imports) - 1)
}

// Func defines a function and returns its function index.
func (m *Module) Func(params, results, locals []ValType, body *Code) uint32 {
	m.funcs = append(m.funcs, funcDef{
		typeIdx: m.typeIndex(params, results),
		locals:  locals,
		body:    body.Bytes(),
	})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Global defines a mutable i32 global and returns its index.
func (m *Module) Global(init int32) uint32 {
	m.globals = append(m.globals, global{init: init})
	return uint32(len(m.globals) - 1)
}

// Memory defines the module's linear memory in 64KiB pages.
func (m *Module) Memory(minPages uint32, maxPages *uint32) {
	m.hasMem = true
	m.memMin = minPages
	m.memMax = maxPages
}

// Export exports a function under name.
func (m *Module) Export(name string, funcIdx uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindFunc, idx: funcIdx})
}

// ExportMemory exports memory 0 under name.
func (m *Module) ExportMemory(name string) {
	m.exports = append(m.exports, export{name: name, kind: kindMemory, idx: 0})
}

// ExportGlobal exports a global under name.
func (m *Module) ExportGlobal(name string, idx uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindGlobal, idx: idx})
}

// Data places init at offset in memory 0 at instantiation.
func (m *Module) Data(offset uint32, init []byte) {
	m.data = append(m.data, data{offset: offset, init: init})
}

// Encode returns the binary module.
func (m *Module) Encode() []byte {
	w := &writer{}
	w.raw([]byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00})

	if len(m.types) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.types)))
		for _, t := range m.types {
			sec.byte(0x60)
			sec.vec(valTypeBytes(t.params))
			sec.vec(valTypeBytes(t.results))
		}
		w.section(sectionType, sec)
	}

	if len(m.imports) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.name(imp.module)
			sec.name(imp.name)
			sec.byte(kindFunc)
			sec.u32(imp.typeIdx)
		}
		w.section(sectionImport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.u32(f.typeIdx)
		}
		w.section(sectionFunction, sec)
	}

	if m.hasMem {
		sec := &writer{}
		sec.u32(1)
		if m.memMax != nil {
			sec.byte(0x01)
			sec.u32(m.memMin)
			sec.u32(*m.memMax)
		} else {
			sec.byte(0x00)
			sec.u32(m.memMin)
		}
		w.section(sectionMemory, sec)
	}

	if len(m.globals) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.globals)))
		for _, g := range m.globals {
			sec.byte(byte(I32))
			sec.byte(0x01) // mutable
			sec.byte(opI32Const)
			sec.s64(int64(g.init))
			sec.byte(opEnd)
		}
		w.section(sectionGlobal, sec)
	}

	if len(m.exports) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.exports)))
		for _, e := range m.exports {
			sec.name(e.name)
			sec.byte(e.kind)
			sec.u32(e.idx)
		}
		w.section(sectionExport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			body := &writer{}
			body.u32(uint32(len(f.locals)))
			for _, l := range f.locals {
				body.u32(1)
				body.byte(byte(l))
			}
			body.raw(f.body)
			sec.u32(uint32(body.buf.Len()))
			sec.raw(body.bytes())
		}
		w.section(sectionCode, sec)
	}

	if len(m.data) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.data)))
		for _, d := range m.data {
			sec.u32(0) // active, memory 0
			sec.byte(opI32Const)
			sec.s64(int64(int32(d.offset)))
			sec.byte(opEnd)
			sec.u32(uint32(len(d.init)))
			sec.raw(d.init)
		}
		w.section(sectionData, sec)
	}

	return w.bytes()
}

func valTypeBytes(ts []ValType) []byte {
	out := make([]byte, len(ts))
	for i, t := range ts {
		out[i] = byte(t)
	}
	return out
}

func equalTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
