// Package simhost is a host runtime for sandboxed WebAssembly hardware simulators.
//
// The guest is an opaque core module (for example a Game Boy core) that renders
// into a frame buffer inside its own linear memory. This library loads the module,
// links its imports against host functions, and drives it one fixed quantum of
// simulated cycles per display frame.
//
// # Architecture Overview
//
//	simhost/             Root package with the Memory and MemorySizer interfaces
//	├── engine/          Guest module handle: wazero runtime, compiled image, instance
//	├── linker/          Import table, fallback stubs, host module installation
//	├── memory/          Re-derived, bounds-checked view over guest memory
//	├── diag/            Guest log decoding, fatal reports, diagnostic sinks
//	├── driver/          Session setup, tick state machine, frame schedulers
//	├── input/           Button bitmask and terminal key map
//	├── present/         Frame presenters: terminal, PNG snapshot, recorder
//	├── config/          TOML/.env/environment configuration
//	├── runtime/         High-level Host wiring all of the above
//	├── tui/             Interactive bubbletea front-end
//	├── errors/          Structured error types
//	├── cmd/simhost/     CLI: run, imports, demo
//	└── internal/        wasm binary builder, built-in demo guest, test guests
//
// # Quick Start
//
//	image, err := runtime.LoadImage("build/gb_rs.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	host, err := runtime.Load(ctx, image, runtime.Options{
//	    Config:    config.Default(),
//	    Presenter: present.NewSnapshot(160, 144),
//	})
//	if err != nil {
//	    log.Fatal(err) // LinkFailure: nothing was instantiated
//	}
//	defer host.Close(ctx)
//
//	if err := host.Driver().Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	err = host.Driver().Run(ctx, driver.NewFrameClock(59.7275))
//
// # Guest Contract
//
// The guest exports memory plus:
//
//	setup() -> session
//	get_frame_buffer_offset(session) -> offset
//	step(session, cycles)
//	deliver_input(session, bitmask)        (optional)
//
// and may import log(ptr, len), fatal(code) and notify_boot_image_offset(ptr).
// Any other function import is linked to a stub that reports the call and
// returns zero.
//
// # Memory Model
//
// Guest memory may move whenever it grows, and it can only grow inside a guest
// call. The host never keeps a byte slice into guest memory across a guest call:
// every access goes through memory.View, which re-derives the memory from the
// module and copies out, or lends the live bytes to a callback.
//
// # Thread Safety
//
// The guest is single-threaded. A Driver runs at most one tick at a time and
// rejects reentrant ticks; it should be driven from a single goroutine.
package simhost
