package diag

import (
	"sync"

	"go.uber.org/zap"
)

// ZapSink writes records through a zap logger. Fatal records are logged at
// error level with fatal=true; zap's own fatal level would exit the process.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink creates a sink writing to l, or a no-op logger when l is nil.
func NewZapSink(l *zap.Logger) *ZapSink {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapSink{log: l.With(zap.String("source", "guest"))}
}

// Emit implements Sink.
func (s *ZapSink) Emit(r Record) {
	fields := []zap.Field{
		zap.String("kind", string(r.Kind)),
		zap.Uint64("tick", r.Tick),
	}
	if r.Session != "" {
		fields = append(fields, zap.String("session", r.Session))
	}

	switch r.Kind {
	case KindLog:
		s.log.Info(r.Text, fields...)
	case KindUnimplemented:
		s.log.Warn("unimplemented import called",
			append(fields, zap.String("import", r.Import), zap.Uint64s("args", r.Args))...)
	case KindFatal:
		s.log.Error("guest fatal",
			append(fields, zap.Uint32("code", r.Code), zap.Bool("fatal", true))...)
	default:
		fields = append(fields, zap.Error(r.Err))
		if r.Severity >= SeverityFatal {
			s.log.Error("driver fault", append(fields, zap.Bool("fatal", true))...)
		} else {
			s.log.Warn("driver fault", fields...)
		}
	}
}

// Recorder keeps records in memory. It is safe for concurrent use.
type Recorder struct {
	records []Record
	limit   int
	mu      sync.Mutex
}

// NewRecorder keeps at most limit records, dropping the oldest; 0 keeps all.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Emit implements Sink.
func (r *Recorder) Emit(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	if r.limit > 0 && len(r.records) > r.limit {
		r.records = append(r.records[:0:0], r.records[len(r.records)-r.limit:]...)
	}
}

// Records returns a copy of the kept records.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Count returns how many kept records have the given kind.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Kind == kind {
			n++
		}
	}
	return n
}

// Tail returns up to n most recent records.
func (r *Recorder) Tail(n int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	n = min(max(n, 0), len(r.records))
	out := make([]Record, n)
	copy(out, r.records[len(r.records)-n:])
	return out
}

// Reset drops all records.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
}
