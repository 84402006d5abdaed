package diag

import (
	"errors"
	"strings"
	"testing"

	hosterrors "github.com/wippyai/simhost/errors"
)

// bytesReader serves spans out of a plain byte slice.
type bytesReader []byte

func (b bytesReader) Read(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(b)) {
		return nil, hosterrors.OutOfBounds(hosterrors.PhaseMemory, uint64(offset), uint64(length), uint32(len(b)))
	}
	out := make([]byte, length)
	copy(out, b[offset:end])
	return out, nil
}

func TestChannel_DecodeLog(t *testing.T) {
	mem := make(bytesReader, 256)
	copy(mem[100:], "hello")

	rec := NewRecorder(0)
	ch := NewChannel(rec)
	ch.SetSession("s1")
	ch.SetTick(3)

	text, err := ch.DecodeLog(mem, 100, 5)
	if err != nil {
		t.Fatalf("DecodeLog: %v", err)
	}
	if text != "hello" {
		t.Errorf("text = %q, want hello", text)
	}

	records := rec.Records()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	if r.Kind != KindLog || r.Text != "hello" || r.Session != "s1" || r.Tick != 3 {
		t.Errorf("record = %+v", r)
	}
}

func TestChannel_DecodeLogText(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"plain", []byte("emulator starting!"), "emulator starting!"},
		{"nul padding", []byte("pc=0x0100\x00\x00\x00"), "pc=0x0100"},
		{"trailing newline", []byte("line\n"), "line"},
		{"crlf", []byte("line\r\n"), "line"},
		{"invalid utf8", []byte{'a', 0xff, 'b'}, "a�b"},
		{"multibyte", []byte("tick ✓"), "tick ✓"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := bytesReader(tt.raw)
			ch := NewChannel(nil)
			got, err := ch.DecodeLog(mem, 0, uint32(len(tt.raw)))
			if err != nil {
				t.Fatalf("DecodeLog: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChannel_DecodeLogOutOfBounds(t *testing.T) {
	rec := NewRecorder(0)
	ch := NewChannel(rec)

	_, err := ch.DecodeLog(make(bytesReader, 16), 10, 10)
	if !errors.Is(err, hosterrors.ErrOutOfBounds) {
		t.Fatalf("err = %v, want out of bounds", err)
	}
	if rec.Count(KindFault) != 1 || rec.Count(KindLog) != 0 {
		t.Errorf("records = %v", rec.Records())
	}
	if ch.Halted() {
		t.Error("an unreadable log span must not halt the session")
	}
}

func TestChannel_DecodeLogLimit(t *testing.T) {
	rec := NewRecorder(0)
	ch := NewChannel(rec)
	ch.SetMaxLogBytes(4)

	_, err := ch.DecodeLog(make(bytesReader, 16), 0, 8)
	if err == nil {
		t.Fatal("expected limit error")
	}
	if rec.Count(KindFault) != 1 {
		t.Errorf("records = %v", rec.Records())
	}
}

func TestChannel_ReportFatal(t *testing.T) {
	rec := NewRecorder(0)
	ch := NewChannel(rec)

	if ch.Halted() {
		t.Fatal("fresh channel is halted")
	}

	err := ch.ReportFatal(7)
	if !errors.Is(err, hosterrors.ErrGuestFatal) {
		t.Errorf("err = %v", err)
	}
	ch.ReportFatal(9)

	code, ok := ch.Fatal()
	if !ok || code != 7 {
		t.Errorf("Fatal() = %d, %v; want first code 7", code, ok)
	}
	if rec.Count(KindFatal) != 2 {
		t.Errorf("fatal records = %d, want 2", rec.Count(KindFatal))
	}
	for _, r := range rec.Records() {
		if r.Severity != SeverityFatal {
			t.Errorf("fatal record severity = %s", r.Severity)
		}
	}
}

func TestChannel_ReportUnimplemented(t *testing.T) {
	rec := NewRecorder(0)
	ch := NewChannel(rec)

	args := []uint64{1, 2}
	ch.ReportUnimplemented("env", "extra_future_fn", args)
	args[0] = 99

	records := rec.Records()
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}
	r := records[0]
	if r.Import != "env.extra_future_fn" {
		t.Errorf("Import = %q", r.Import)
	}
	if len(r.Args) != 2 || r.Args[0] != 1 || r.Args[1] != 2 {
		t.Errorf("Args = %v, want [1 2]", r.Args)
	}
	if !errors.Is(r.Err, hosterrors.ErrUnimplementedImport) {
		t.Errorf("Err = %v", r.Err)
	}
	if !strings.Contains(r.String(), "env.extra_future_fn[1 2]") {
		t.Errorf("String() = %q", r.String())
	}
	if ch.Halted() {
		t.Error("unimplemented import must not halt")
	}
}

func TestChannel_ReportUnimplementedMangledNames(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"_ZN5gb_rs4wasm9audio_out17h0123456789abcdefE", "env.gb_rs::wasm::audio_out"},
		{"_ZN9223372036854775808x", "env._ZN9223372036854775808x"},
		{"_ZN99999999999999999999x", "env._ZN99999999999999999999x"},
	}

	for _, tt := range tests {
		rec := NewRecorder(0)
		ch := NewChannel(rec)
		ch.ReportUnimplemented("env", tt.name, []uint64{1, 2})

		records := rec.Records()
		if len(records) != 1 {
			t.Fatalf("%s: got %d records", tt.name, len(records))
		}
		if records[0].Import != tt.want {
			t.Errorf("%s: Import = %q, want %q", tt.name, records[0].Import, tt.want)
		}
	}
}

func TestRecorder_Limit(t *testing.T) {
	rec := NewRecorder(2)
	for i := 0; i < 5; i++ {
		rec.Emit(Record{Kind: KindLog, Tick: uint64(i)})
	}
	records := rec.Records()
	if len(records) != 2 || records[0].Tick != 3 || records[1].Tick != 4 {
		t.Errorf("records = %+v", records)
	}

	tail := rec.Tail(5)
	if len(tail) != 2 {
		t.Errorf("Tail(5) returned %d records", len(tail))
	}
	if tail := rec.Tail(1); len(tail) != 1 || tail[0].Tick != 4 {
		t.Errorf("Tail(1) = %+v", tail)
	}
	if tail := rec.Tail(-1); len(tail) != 0 {
		t.Errorf("Tail(-1) returned %d records", len(tail))
	}

	rec.Reset()
	if len(rec.Records()) != 0 {
		t.Error("Reset kept records")
	}
}

func TestTee(t *testing.T) {
	a, b := NewRecorder(0), NewRecorder(0)
	var calls int
	sink := Tee(a, nil, b, SinkFunc(func(Record) { calls++ }))

	sink.Emit(Record{Kind: KindLog, Text: "x"})

	if a.Count(KindLog) != 1 || b.Count(KindLog) != 1 || calls != 1 {
		t.Errorf("fan-out: a=%d b=%d func=%d", a.Count(KindLog), b.Count(KindLog), calls)
	}
}

func TestZapSink_DoesNotExit(t *testing.T) {
	sink := NewZapSink(nil)
	sink.Emit(Record{Kind: KindFatal, Severity: SeverityFatal, Code: 1})
	sink.Emit(Record{Kind: KindFault, Severity: SeverityFatal, Err: errors.New("x")})
	sink.Emit(Record{Kind: KindUnimplemented, Import: "env.f", Args: []uint64{1}})
	sink.Emit(Record{Kind: KindLog, Text: "ok"})
}
