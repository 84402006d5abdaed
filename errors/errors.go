package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the host lifecycle the error occurred
type Phase string

const (
	PhaseConfig  Phase = "config"  // configuration loading
	PhaseLoad    Phase = "load"    // module image loading
	PhaseLink    Phase = "link"    // import resolution and instantiation
	PhaseMemory  Phase = "memory"  // guest memory access
	PhaseSetup   Phase = "setup"   // session setup
	PhaseTick    Phase = "tick"    // per-frame execution
	PhasePresent Phase = "present" // frame hand-off
)

// Kind categorizes the error
type Kind string

const (
	KindLinkFailure         Kind = "link_failure"
	KindOutOfBounds         Kind = "out_of_bounds"
	KindUnimplementedImport Kind = "unimplemented_import"
	KindGuestFatal          Kind = "guest_fatal"
	KindGuestTrap           Kind = "guest_trap"
	KindInvalidState        Kind = "invalid_state"
	KindInvalidConfig       Kind = "invalid_config"
	KindInvalidInput        Kind = "invalid_input"
	KindNotFound            Kind = "not_found"
	KindPresentation        Kind = "presentation"
)

// Error is the structured error type used throughout the host
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone; a target with a
// Detail must also match it exactly.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Detail != "" && t.Detail != e.Detail {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Sentinels for errors.Is matching on kind regardless of phase.
var (
	ErrLinkFailure         = &Error{Kind: KindLinkFailure}
	ErrOutOfBounds         = &Error{Kind: KindOutOfBounds}
	ErrUnimplementedImport = &Error{Kind: KindUnimplementedImport}
	ErrGuestFatal          = &Error{Kind: KindGuestFatal}
	ErrGuestTrap           = &Error{Kind: KindGuestTrap}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrInvalidConfig       = &Error{Kind: KindInvalidConfig}
)

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// LinkFailure creates an import resolution or instantiation error
func LinkFailure(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindLinkFailure,
		Detail: detail,
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, offset, length uint64, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range [%d, %d) exceeds memory size %d", offset, offset+length, size),
		Value:  offset,
	}
}

// UnimplementedImport creates the diagnostic error for a call to a stubbed import
func UnimplementedImport(module, name string, args []uint64) *Error {
	return &Error{
		Phase:  PhaseTick,
		Kind:   KindUnimplementedImport,
		Path:   []string{module, DemangleRust(name)},
		Detail: fmt.Sprintf("called with %v", args),
		Value:  args,
	}
}

// GuestFatal creates the error for a guest-signaled unrecoverable condition
func GuestFatal(code uint32) *Error {
	return &Error{
		Phase:  PhaseTick,
		Kind:   KindGuestFatal,
		Detail: fmt.Sprintf("guest reported fatal code %d", code),
		Value:  code,
	}
}

// GuestTrap creates the error for a guest call that trapped without a fatal report
func GuestTrap(phase Phase, export string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindGuestTrap,
		Path:   []string{export},
		Detail: "guest call trapped",
		Cause:  cause,
	}
}

// InvalidState creates an error for an operation attempted in the wrong driver state
func InvalidState(phase Phase, op, state string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Detail: fmt.Sprintf("%s not allowed in state %s", op, state),
	}
}

// InvalidConfig creates a configuration error
func InvalidConfig(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidConfig,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Load creates a module image loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindNotFound,
		Detail: detail,
		Cause:  cause,
	}
}

const maxLengthDigits = 9

// DemangleRust extracts a readable path from a mangled Rust symbol.
// Names that are not mangled are returned unchanged.
func DemangleRust(name string) string {
	if !strings.HasPrefix(name, "_ZN") {
		return name
	}

	// _ZN<len><name><len><name>...E
	s := name[3:]
	var parts []string

	for len(s) > 0 && s[0] != 'E' {
		lenEnd := 0
		for lenEnd < len(s) && s[lenEnd] >= '0' && s[lenEnd] <= '9' {
			lenEnd++
		}
		// More digits than any symbol length; also keeps length from overflowing.
		if lenEnd == 0 || lenEnd > maxLengthDigits {
			break
		}

		length := 0
		for i := 0; i < lenEnd; i++ {
			length = length*10 + int(s[i]-'0')
		}
		s = s[lenEnd:]

		if length < 0 || length > len(s) {
			break
		}

		part := s[:length]
		s = s[length:]

		// hash suffix: 'h' followed by 16 hex digits
		if len(part) == 17 && part[0] == 'h' && isHex(part[1:]) {
			continue
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return name
	}

	return strings.Join(parts, "::")
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
