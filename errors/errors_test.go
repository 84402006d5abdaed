package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseTick,
				Kind:   KindOutOfBounds,
				Path:   []string{"frame_buffer"},
				Detail: "span too long",
			},
			contains: []string{"[tick]", "out_of_bounds", "frame_buffer", "span too long"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLink,
				Kind:  KindLinkFailure,
			},
			contains: []string{"[link]", "link_failure"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLink,
				Kind:   KindLinkFailure,
				Detail: "instantiate",
				Cause:  errors.New("memory limit exceeded"),
			},
			contains: []string{"[link]", "instantiate", "caused by", "memory limit exceeded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := LinkFailure("compile", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := OutOfBounds(PhaseMemory, 10, 4, 8)

	if !errors.Is(err, &Error{Phase: PhaseMemory, Kind: KindOutOfBounds}) {
		t.Error("expected match on phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseTick, Kind: KindOutOfBounds}) {
		t.Error("expected mismatch on different phase")
	}
	if !errors.Is(err, ErrOutOfBounds) {
		t.Error("expected sentinel to match on kind alone")
	}
	if errors.Is(err, ErrGuestFatal) {
		t.Error("expected sentinel of other kind not to match")
	}

	busy := &Error{Phase: PhaseTick, Kind: KindInvalidState, Detail: "busy"}
	halted := &Error{Phase: PhaseTick, Kind: KindInvalidState, Detail: "halted"}
	if errors.Is(busy, halted) {
		t.Error("expected targets with different details not to match")
	}
	if !errors.Is(InvalidState(PhaseTick, "tick", "halted"), ErrInvalidState) {
		t.Error("expected detail-less sentinel to match any detail")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("boom")
	err := New(PhaseTick, KindGuestTrap).
		Path("step").
		Value(42).
		Cause(cause).
		Detail("trap after %d cycles", 100).
		Build()

	if err.Phase != PhaseTick || err.Kind != KindGuestTrap {
		t.Errorf("phase/kind = %s/%s", err.Phase, err.Kind)
	}
	if err.Detail != "trap after 100 cycles" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v", err.Value)
	}
	if len(err.Path) != 1 || err.Path[0] != "step" {
		t.Errorf("Path = %v", err.Path)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable")
	}

	plain := New(PhaseConfig, KindInvalidConfig).Detail("no args").Build()
	if plain.Detail != "no args" {
		t.Errorf("Detail without args = %q", plain.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseMemory, 65530, 10, 65536)
		if !strings.Contains(err.Detail, "[65530, 65540)") || !strings.Contains(err.Detail, "65536") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("GuestFatal", func(t *testing.T) {
		err := GuestFatal(7)
		if err.Kind != KindGuestFatal || err.Value != uint32(7) {
			t.Errorf("got %+v", err)
		}
		if !strings.Contains(err.Error(), "7") {
			t.Errorf("message %q missing code", err.Error())
		}
	})

	t.Run("UnimplementedImport", func(t *testing.T) {
		err := UnimplementedImport("env", "extra_future_fn", []uint64{1, 2})
		msg := err.Error()
		for _, s := range []string{"unimplemented_import", "env.extra_future_fn", "[1 2]"} {
			if !strings.Contains(msg, s) {
				t.Errorf("message %q missing %q", msg, s)
			}
		}
	})

	t.Run("InvalidState", func(t *testing.T) {
		err := InvalidState(PhaseTick, "tick", "halted")
		if !errors.Is(err, ErrInvalidState) {
			t.Error("expected invalid state kind")
		}
		if !strings.Contains(err.Detail, "halted") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("GuestTrap", func(t *testing.T) {
		cause := errors.New("unreachable")
		err := GuestTrap(PhaseTick, "step", cause)
		if !errors.Is(err, ErrGuestTrap) || !errors.Is(err, cause) {
			t.Errorf("got %v", err)
		}
	})
}

func TestDemangleRust(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"wasm_log", "wasm_log"},
		{"_ZN5gb_rs4wasm8wasm_log17h0123456789abcdefE", "gb_rs::wasm::wasm_log"},
		{"_ZN3foo3barE", "foo::bar"},
		{"_ZN", "_ZN"},
		{"_ZN99shortE", "_ZN99shortE"},
		{"_ZN9223372036854775808x", "_ZN9223372036854775808x"},
		{"_ZN18446744073709551617xE", "_ZN18446744073709551617xE"},
		{"_ZN3foo9223372036854775808xE", "foo"},
	}

	for _, tt := range tests {
		if got := DemangleRust(tt.in); got != tt.want {
			t.Errorf("DemangleRust(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
