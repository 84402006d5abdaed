// Package errors provides structured error types for the simulator host.
//
// Errors are categorized by Phase (where in the host lifecycle the error occurred)
// and Kind (error category). The kinds mirror the host's failure taxonomy:
//
//	link_failure          import resolution or instantiation failed; fatal to startup
//	out_of_bounds         a guest memory access exceeded the current memory size
//	unimplemented_import  a stubbed import was called; observational only
//	guest_fatal           the guest reported an unrecoverable condition
//	guest_trap            a guest call trapped without reporting a fatal
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseTick, errors.KindOutOfBounds).
//		Path("frame_buffer").
//		Detail("offset %d beyond memory", off).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseMemory, offset, length, size)
//	err := errors.GuestFatal(7)
//
// All errors implement the standard error interface and support errors.Is/As.
// The Err* sentinels match any phase:
//
//	if errors.Is(err, hosterrors.ErrGuestFatal) { ... }
package errors
