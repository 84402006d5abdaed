// Package linker resolves a guest's declared imports into host functions.
//
// # Main Types
//
//   - Handlers: the host side of the recognized imports
//   - Table: one Entry per declared function import, built before instantiation
//   - Link: resolve, install host modules, instantiate
//
// # Recognized Imports
//
// Matched by import name under any import module:
//
//	log(ptr, len)                    alias wasm_log
//	fatal(code)                      alias wasm_never
//	notify_boot_image_offset(ptr)
//
// Integer parameters may be declared i32 or i64; values are truncated to 32 bits.
//
// # Fallback Stubs
//
// Every other function import, and any recognized name declared with an
// incompatible signature, is bound to a stub with the declared signature. A stub
// reports the call once through Handlers.Unimplemented, zeroes its results and
// returns normally, so newer guests still load on an older host.
//
// # Example
//
//	mod, _ := eng.Compile(ctx, image)
//	inst, table, err := linker.Link(ctx, eng, mod, handlers, "guest")
//	if err != nil {
//	    return err // link_failure, nothing instantiated
//	}
//	fmt.Print(table.Describe())
package linker
