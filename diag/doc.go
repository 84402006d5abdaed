// Package diag carries guest diagnostics to the host.
//
// The Channel decodes guest log spans from memory, reports fatal codes and
// unimplemented import calls, and hands every report to a Sink as a Record.
// Everything runs synchronously inside the guest call that produced it, so
// log lines keep their order relative to the simulated work around them.
//
// Sinks:
//
//	ZapSink   structured logging through zap (the default)
//	Recorder  in-memory, for tests and the interactive log panel
//	Tee       fan-out to several sinks
package diag
