package diag

import (
	"bytes"
	"sync"

	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/simhost/errors"
)

// DefaultMaxLogBytes bounds a single guest log span.
const DefaultMaxLogBytes = 1 << 20

// SpanReader reads a byte span out of guest memory.
type SpanReader interface {
	Read(offset uint32, length uint32) ([]byte, error)
}

// Channel turns guest diagnostics into records. The first fatal report
// latches the channel halted for the rest of the session.
type Channel struct {
	sink        Sink
	session     string
	tick        uint64
	maxLogBytes uint32
	fatalCode   uint32
	fatal       bool
	mu          sync.Mutex
}

// NewChannel creates a channel writing to sink. A nil sink discards records.
func NewChannel(sink Sink) *Channel {
	if sink == nil {
		sink = Tee()
	}
	return &Channel{sink: sink, maxLogBytes: DefaultMaxLogBytes}
}

// SetMaxLogBytes changes the log span bound; 0 restores the default.
func (c *Channel) SetMaxLogBytes(n uint32) {
	if n == 0 {
		n = DefaultMaxLogBytes
	}
	c.mu.Lock()
	c.maxLogBytes = n
	c.mu.Unlock()
}

// SetSession tags subsequent records with the session id.
func (c *Channel) SetSession(id string) {
	c.mu.Lock()
	c.session = id
	c.mu.Unlock()
}

// SetTick tags subsequent records with the tick number.
func (c *Channel) SetTick(n uint64) {
	c.mu.Lock()
	c.tick = n
	c.mu.Unlock()
}

func (c *Channel) emit(r Record) {
	c.mu.Lock()
	r.Session = c.session
	r.Tick = c.tick
	c.mu.Unlock()
	c.sink.Emit(r)
}

// DecodeLog reads [offset, offset+length) from mem, decodes it as UTF-8
// replacing invalid sequences, and forwards it as a log record.
// A span that cannot be read is reported as a fault record and returned.
func (c *Channel) DecodeLog(mem SpanReader, offset, length uint32) (string, error) {
	c.mu.Lock()
	limit := c.maxLogBytes
	c.mu.Unlock()

	if length > limit {
		err := errors.New(errors.PhaseTick, errors.KindInvalidInput).
			Path("log").
			Value(length).
			Detail("log span of %d bytes exceeds limit %d", length, limit).
			Build()
		c.ReportFault(err, false)
		return "", err
	}

	raw, err := mem.Read(offset, length)
	if err != nil {
		c.ReportFault(err, false)
		return "", err
	}

	text := decodeText(raw)
	c.emit(Record{Kind: KindLog, Severity: SeverityInfo, Text: text})
	return text, nil
}

// decodeText trims NUL padding and a trailing newline, then decodes UTF-8.
func decodeText(raw []byte) string {
	raw = bytes.TrimRight(raw, "\x00")
	raw = bytes.TrimSuffix(raw, []byte("\n"))
	raw = bytes.TrimSuffix(raw, []byte("\r"))

	out, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return string(bytes.ToValidUTF8(raw, []byte("�")))
	}
	return string(out)
}

// ReportFatal records a guest fatal code and emits a fatal record.
// Only the first code is kept; later reports are still emitted.
func (c *Channel) ReportFatal(code uint32) error {
	c.mu.Lock()
	if !c.fatal {
		c.fatal = true
		c.fatalCode = code
	}
	c.mu.Unlock()

	err := errors.GuestFatal(code)
	c.emit(Record{Kind: KindFatal, Severity: SeverityFatal, Code: code, Err: err})
	return err
}

// ReportUnimplemented emits one record for a call to a stubbed import.
func (c *Channel) ReportUnimplemented(module, name string, args []uint64) {
	argsCopy := append([]uint64(nil), args...)
	c.emit(Record{
		Kind:     KindUnimplemented,
		Severity: SeverityWarn,
		Import:   module + "." + errors.DemangleRust(name),
		Args:     argsCopy,
		Err:      errors.UnimplementedImport(module, name, argsCopy),
	})
}

// ReportFault emits a host-side fault. Fatal faults are what halt the driver.
func (c *Channel) ReportFault(err error, fatal bool) {
	sev := SeverityError
	if fatal {
		sev = SeverityFatal
	}
	c.emit(Record{Kind: KindFault, Severity: sev, Err: err})
}

// Fatal returns the first reported fatal code.
func (c *Channel) Fatal() (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatalCode, c.fatal
}

// Halted reports whether the guest has reported a fatal condition.
func (c *Channel) Halted() bool {
	_, ok := c.Fatal()
	return ok
}
