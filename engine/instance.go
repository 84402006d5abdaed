package engine

import (
	"context"
	"reflect"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/simhost/errors"
)

// Instance is the live guest. It is not safe for concurrent use.
type Instance struct {
	mod       api.Module
	funcCache map[string]api.Function
	closed    bool
}

// Module returns the underlying wazero module.
func (i *Instance) Module() api.Module {
	return i.mod
}

// Memory returns the guest's memory as of now, or nil if it exports none.
func (i *Instance) Memory() api.Memory {
	if i.mod == nil {
		return nil
	}
	mem := i.mod.Memory()
	if mem == nil || reflect.ValueOf(mem).IsNil() {
		return nil
	}
	return mem
}

func (i *Instance) function(name string) api.Function {
	if fn, ok := i.funcCache[name]; ok {
		return fn
	}
	fn := i.mod.ExportedFunction(name)
	if fn != nil {
		i.funcCache[name] = fn
	}
	return fn
}

// HasExport reports whether the guest exports a function called name.
func (i *Instance) HasExport(name string) bool {
	if i.closed || name == "" {
		return false
	}
	return i.function(name) != nil
}

// Call invokes an exported function with raw wasm values.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	if i.closed {
		return nil, errors.InvalidState(errors.PhaseTick, "call "+name, "closed")
	}
	fn := i.function(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseTick, "export", name)
	}
	return fn.Call(ctx, args...)
}

// Close tears the guest down. Further calls fail.
func (i *Instance) Close(ctx context.Context) error {
	if i.closed {
		return nil
	}
	i.closed = true
	return i.mod.Close(ctx)
}
