package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/simhost/errors"
)

// Engine owns the wazero runtime a guest is compiled and instantiated in.
type Engine struct {
	runtime wazero.Runtime
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum guest memory in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// New creates an engine with the given configuration. cfg may be nil.
func New(ctx context.Context, cfg *Config) *Engine {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &Engine{runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg)}
}

// Runtime exposes the underlying wazero runtime for host module installation.
func (e *Engine) Runtime() wazero.Runtime {
	return e.runtime
}

// Compile validates and compiles a module image.
func (e *Engine) Compile(ctx context.Context, image []byte) (*Module, error) {
	if len(image) == 0 {
		return nil, errors.LinkFailure("empty module image", nil)
	}

	compiled, err := e.runtime.CompileModule(ctx, image)
	if err != nil {
		return nil, errors.LinkFailure("compile module image", err)
	}

	mod := &Module{engine: e, compiled: compiled}
	Logger().Debug("compiled module image",
		zap.Int("bytes", len(image)),
		zap.Int("imports", len(mod.Imports())),
		zap.Int("exports", len(compiled.ExportedFunctions())))
	return mod, nil
}

// Close releases the runtime and every module instantiated in it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
