// Package wasmbin builds small WebAssembly core modules in memory.
//
// It covers the subset needed to describe simulator guests for tests and the
// built-in demo: function imports, one linear memory, mutable i32 globals,
// exported functions, and active data segments. Bodies are assembled with Code.
//
//	m := wasmbin.NewModule()
//	logFn := m.ImportFunc("env", "log", []wasmbin.ValType{wasmbin.I32, wasmbin.I32}, nil)
//	m.Memory(1, nil)
//	m.ExportMemory("memory")
//	setup := m.Func(nil, []wasmbin.ValType{wasmbin.I32}, nil,
//		wasmbin.NewCode().I32Const(100).I32Const(5).Call(logFn).I32Const(1))
//	m.Export("setup", setup)
//	bin := m.Encode()
package wasmbin
