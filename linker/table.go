package linker

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/simhost/engine"
)

// Handlers is the host side of the recognized imports. Every method runs
// synchronously inside the guest call that invoked the import; mod is that guest.
type Handlers interface {
	Log(ctx context.Context, mod api.Module, ptr, length uint32)
	// Fatal records the code. The linker stops the guest call after it returns.
	Fatal(ctx context.Context, mod api.Module, code uint32)
	NotifyBootImageOffset(ctx context.Context, ptr uint32)
	Unimplemented(ctx context.Context, module, name string, args []uint64)
}

// Canonical names of the recognized imports.
const (
	ImportLog                   = "log"
	ImportFatal                 = "fatal"
	ImportNotifyBootImageOffset = "notify_boot_image_offset"
)

// aliases maps accepted import names to canonical ones.
var aliases = map[string]string{
	ImportLog:                   ImportLog,
	"wasm_log":                  ImportLog,
	ImportFatal:                 ImportFatal,
	"wasm_never":                ImportFatal,
	ImportNotifyBootImageOffset: ImportNotifyBootImageOffset,
}

// arity is the parameter count each recognized import must declare.
var arity = map[string]int{
	ImportLog:                   2,
	ImportFatal:                 1,
	ImportNotifyBootImageOffset: 1,
}

// Kind tells whether an entry has a real implementation.
type Kind int

const (
	KindImplemented Kind = iota
	KindStub
)

func (k Kind) String() string {
	if k == KindImplemented {
		return "implemented"
	}
	return "stub"
}

// Entry is one resolved import.
type Entry struct {
	fn        api.GoModuleFunc
	Module    string
	Name      string
	Canonical string // recognized name, empty for stubs
	Reason    string // why a recognized name fell back to a stub
	Params    []api.ValueType
	Results   []api.ValueType
	Kind      Kind
}

// Key returns "module.name".
func (e Entry) Key() string {
	return e.Module + "." + e.Name
}

// Func returns the host function bound to this entry.
func (e Entry) Func() api.GoModuleFunc {
	return e.fn
}

// Table is the complete import table for one module image.
type Table struct {
	entries   []Entry
	index     map[string]int
	installed []api.Module
}

// Resolve builds a table with one entry per declared import. It never fails:
// anything the host does not implement gets a stub.
func Resolve(imports []engine.Import, h Handlers) *Table {
	t := &Table{
		entries: make([]Entry, 0, len(imports)),
		index:   make(map[string]int, len(imports)),
	}

	for _, imp := range imports {
		e := Entry{
			Module:  imp.Module,
			Name:    imp.Name,
			Params:  imp.Params,
			Results: imp.Results,
			Kind:    KindStub,
		}

		if canonical, ok := aliases[imp.Name]; ok {
			if reason := checkSignature(canonical, imp); reason != "" {
				e.Reason = reason
				Logger().Warn("recognized import has incompatible signature, using stub",
					zap.String("import", imp.Key()),
					zap.String("reason", reason))
			} else {
				e.Kind = KindImplemented
				e.Canonical = canonical
			}
		}

		if e.Kind == KindImplemented {
			e.fn = implemented(e.Canonical, len(imp.Results), h)
		} else {
			e.fn = stub(imp.Module, imp.Name, len(imp.Params), len(imp.Results), h)
		}

		Logger().Debug("resolved import",
			zap.String("import", imp.Key()),
			zap.Stringer("kind", e.Kind))

		t.index[e.Key()] = len(t.entries)
		t.entries = append(t.entries, e)
	}

	return t
}

func checkSignature(canonical string, imp engine.Import) string {
	if want := arity[canonical]; len(imp.Params) != want {
		return fmt.Sprintf("expected %d params, declared %d", want, len(imp.Params))
	}
	for i, p := range imp.Params {
		if p != api.ValueTypeI32 && p != api.ValueTypeI64 {
			return fmt.Sprintf("param %d is %s, expected an integer", i, api.ValueTypeName(p))
		}
	}
	return ""
}

func implemented(canonical string, results int, h Handlers) api.GoModuleFunc {
	switch canonical {
	case ImportLog:
		return func(ctx context.Context, mod api.Module, stack []uint64) {
			ptr, length := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
			h.Log(ctx, mod, ptr, length)
			clearResults(stack, results)
		}
	case ImportFatal:
		return func(ctx context.Context, mod api.Module, stack []uint64) {
			code := api.DecodeU32(stack[0])
			h.Fatal(ctx, mod, code)
			// The guest is never resumed after a fatal; unwind the call.
			panic(sys.NewExitError(code))
		}
	default:
		return func(ctx context.Context, _ api.Module, stack []uint64) {
			h.NotifyBootImageOffset(ctx, api.DecodeU32(stack[0]))
			clearResults(stack, results)
		}
	}
}

func stub(module, name string, params, results int, h Handlers) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		n := params
		if n > len(stack) {
			n = len(stack)
		}
		args := append([]uint64(nil), stack[:n]...)
		h.Unimplemented(ctx, module, name, args)
		clearResults(stack, results)
	}
}

func clearResults(stack []uint64, results int) {
	for i := 0; i < results && i < len(stack); i++ {
		stack[i] = 0
	}
}

// Entries returns the entries in declaration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup finds the entry for module.name.
func (t *Table) Lookup(module, name string) (Entry, bool) {
	i, ok := t.index[module+"."+name]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Stubs returns the entries bound to fallback stubs.
func (t *Table) Stubs() []Entry {
	var out []Entry
	for _, e := range t.entries {
		if e.Kind == KindStub {
			out = append(out, e)
		}
	}
	return out
}

// Describe renders the table one import per line.
func (t *Table) Describe() string {
	var b strings.Builder
	for _, e := range t.entries {
		fmt.Fprintf(&b, "%-40s %-12s %s", e.Key(), e.Kind, signature(e.Params, e.Results))
		if e.Canonical != "" && e.Canonical != e.Name {
			fmt.Fprintf(&b, " (as %s)", e.Canonical)
		}
		if e.Reason != "" {
			fmt.Fprintf(&b, " (%s)", e.Reason)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func signature(params, results []api.ValueType) string {
	names := func(ts []api.ValueType) string {
		s := make([]string, len(ts))
		for i, t := range ts {
			s[i] = api.ValueTypeName(t)
		}
		return strings.Join(s, ", ")
	}
	sig := "(" + names(params) + ")"
	if len(results) > 0 {
		sig += " -> (" + names(results) + ")"
	}
	return sig
}

// byModule groups entries by import module, keeping declaration order.
func (t *Table) byModule() ([]string, map[string][]Entry) {
	var order []string
	groups := make(map[string][]Entry)
	for _, e := range t.entries {
		if _, ok := groups[e.Module]; !ok {
			order = append(order, e.Module)
		}
		groups[e.Module] = append(groups[e.Module], e)
	}
	return order, groups
}
