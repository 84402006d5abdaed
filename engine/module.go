package engine

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/simhost/errors"
)

// Import is a function the module image declares it needs from the host.
type Import struct {
	Module  string
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Key returns "module.name".
func (i Import) Key() string {
	return i.Module + "." + i.Name
}

// Module is a compiled module image.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// Imports returns the declared function imports in declaration order.
func (m *Module) Imports() []Import {
	defs := m.compiled.ImportedFunctions()
	out := make([]Import, 0, len(defs))
	for _, def := range defs {
		modName, name, _ := def.Import()
		out = append(out, Import{
			Module:  modName,
			Name:    name,
			Params:  def.ParamTypes(),
			Results: def.ResultTypes(),
		})
	}
	return out
}

// ImportedMemories returns "module.name" for each memory the image imports.
// The host never provides memory, so any entry here fails instantiation.
func (m *Module) ImportedMemories() []string {
	var out []string
	for _, def := range m.compiled.ImportedMemories() {
		modName, name, _ := def.Import()
		out = append(out, modName+"."+name)
	}
	return out
}

// Exports returns the exported function names, sorted.
func (m *Module) Exports() []string {
	defs := m.compiled.ExportedFunctions()
	out := make([]string, 0, len(defs))
	for name := range defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ExportsMemory reports whether the image exports a linear memory.
func (m *Module) ExportsMemory() bool {
	return len(m.compiled.ExportedMemories()) > 0
}

// Instantiate links the compiled image against host modules already installed
// in the engine's runtime. No start function is run; the driver calls setup.
func (m *Module) Instantiate(ctx context.Context, name string) (*Instance, error) {
	modConfig := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions()

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, errors.LinkFailure("instantiate module", err)
	}

	return &Instance{
		mod:       mod,
		funcCache: make(map[string]api.Function),
	}, nil
}

// Close releases the compiled code. Instances created from it stay usable.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
