package linker

import (
	"strings"
)

// LinkError provides context when installing host modules or instantiating fails.
type LinkError struct {
	Cause      error
	Phase      string
	ImportPath string
	Reason     string
}

func (e *LinkError) Error() string {
	var b strings.Builder
	b.WriteString("link failed")

	if e.Phase != "" {
		b.WriteString(" at ")
		b.WriteString(e.Phase)
	}

	if e.ImportPath != "" {
		b.WriteString(": ")
		b.WriteString(e.ImportPath)
	}

	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *LinkError) Unwrap() error {
	return e.Cause
}

func linkError(phase, importPath, reason string, cause error) *LinkError {
	return &LinkError{
		Phase:      phase,
		ImportPath: importPath,
		Reason:     reason,
		Cause:      cause,
	}
}
