package diag

import (
	"fmt"
	"strings"
)

// Kind identifies what produced a record.
type Kind string

const (
	KindLog           Kind = "log"
	KindFatal         Kind = "fatal"
	KindUnimplemented Kind = "unimplemented"
	KindFault         Kind = "fault"
)

// Severity orders records for display.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Record is one diagnostic event.
type Record struct {
	Err      error
	Kind     Kind
	Session  string
	Text     string
	Import   string
	Args     []uint64
	Tick     uint64
	Severity Severity
	Code     uint32
}

// String renders the record as a single line.
func (r Record) String() string {
	var b strings.Builder
	b.WriteString(string(r.Kind))
	switch r.Kind {
	case KindLog:
		b.WriteString(": ")
		b.WriteString(r.Text)
	case KindFatal:
		fmt.Fprintf(&b, ": code %d", r.Code)
	case KindUnimplemented:
		fmt.Fprintf(&b, ": %s%v", r.Import, r.Args)
	case KindFault:
		if r.Err != nil {
			b.WriteString(": ")
			b.WriteString(r.Err.Error())
		}
	}
	return b.String()
}

// Sink receives diagnostic records.
type Sink interface {
	Emit(Record)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Record)

// Emit implements Sink.
func (f SinkFunc) Emit(r Record) { f(r) }

type tee []Sink

func (t tee) Emit(r Record) {
	for _, s := range t {
		s.Emit(r)
	}
}

// Tee returns a sink that forwards to every non-nil sink in order.
func Tee(sinks ...Sink) Sink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
