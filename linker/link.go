package linker

import (
	"context"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/simhost/engine"
	"github.com/wippyai/simhost/errors"
)

// Install instantiates one host module per import module name, exporting every
// entry with its declared signature. If any module fails, those already
// installed are closed again.
func (t *Table) Install(ctx context.Context, r wazero.Runtime) error {
	order, groups := t.byModule()
	for _, modName := range order {
		if r.Module(modName) != nil {
			t.Uninstall(ctx)
			return linkError("install", modName, "module name already in use", nil)
		}

		builder := r.NewHostModuleBuilder(modName)
		for _, e := range groups[modName] {
			builder.NewFunctionBuilder().
				WithGoModuleFunction(e.fn, e.Params, e.Results).
				WithName(e.Name).
				Export(e.Name)
		}

		mod, err := builder.Instantiate(ctx)
		if err != nil {
			t.Uninstall(ctx)
			return linkError("install", modName, "host module instantiation failed", err)
		}
		t.installed = append(t.installed, mod)
	}
	return nil
}

// Uninstall closes the host modules Install created.
func (t *Table) Uninstall(ctx context.Context) {
	for _, mod := range t.installed {
		if err := mod.Close(ctx); err != nil {
			Logger().Warn("close host module", zap.String("module", mod.Name()), zap.Error(err))
		}
	}
	t.installed = nil
}

// Link resolves mod's imports against h, installs them and instantiates the
// guest under name. On failure nothing usable is left behind and the error is a
// link_failure.
func Link(ctx context.Context, eng *engine.Engine, mod *engine.Module, h Handlers, name string) (*engine.Instance, *Table, error) {
	if mems := mod.ImportedMemories(); len(mems) > 0 {
		return nil, nil, errors.LinkFailure("module imports memory the host does not provide",
			linkError("resolve", mems[0], "memory import", nil))
	}

	table := Resolve(mod.Imports(), h)
	if err := table.Install(ctx, eng.Runtime()); err != nil {
		return nil, nil, errors.LinkFailure("install host functions", err)
	}

	inst, err := mod.Instantiate(ctx, name)
	if err != nil {
		table.Uninstall(ctx)
		return nil, nil, err
	}

	Logger().Info("guest linked",
		zap.String("name", name),
		zap.Int("imports", table.Len()),
		zap.Int("stubs", len(table.Stubs())))
	return inst, table, nil
}
