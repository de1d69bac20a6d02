package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/ziXnOrg/ORCA/internal/logging"
)

const wasmPageSize = 65536

// Defaults per spec.md §4.6.
const (
	DefaultMemoryCapBytes = 128 * 1024 * 1024
	DefaultFuelBudget     = 1_000_000
	DefaultWallTimeout    = 500 * time.Millisecond
)

// ErrFuelExhausted and ErrEpochInterrupted discriminate the two ways an
// invocation can be cut short (spec.md §4.6 "Errors discriminate fuel
// exhaustion from epoch interruption in the returned message").
var (
	ErrFuelExhausted    = errors.New("plugin: fuel exhausted")
	ErrEpochInterrupted = errors.New("plugin: wall-time deadline exceeded")
)

// RunnerConfig bounds one invocation's resources.
type RunnerConfig struct {
	MemoryCapBytes int64
	FuelBudget     uint64
	WallTimeout    time.Duration
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.MemoryCapBytes <= 0 {
		c.MemoryCapBytes = DefaultMemoryCapBytes
	}
	if c.FuelBudget == 0 {
		c.FuelBudget = DefaultFuelBudget
	}
	if c.WallTimeout <= 0 {
		c.WallTimeout = DefaultWallTimeout
	}
	return c
}

// Runner is a long-lived WASM execution engine (spec.md §4.6 "Runner").
// Each Invoke creates a fresh store with its own fuel counter and
// wall-time deadline; the runtime and WASI/host modules are shared
// across invocations.
type Runner struct {
	cfg     RunnerConfig
	logger  *slog.Logger
	runtime wazero.Runtime
}

// NewRunner builds a Runner: a wazero runtime configured to close on
// context cancellation (the epoch-equivalent interruption mechanism
// SPEC_FULL.md §4.6 describes), with WASI linked with no preopens, no
// network, and an empty environment — zero ambient authority.
func NewRunner(ctx context.Context, cfg RunnerConfig, logger *slog.Logger) (*Runner, error) {
	cfg = cfg.withDefaults()
	logger = logging.Default(logger).With("component", "plugin-runner")

	rc := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(uint32(cfg.MemoryCapBytes / wasmPageSize))
	rt := wazero.NewRuntimeWithConfig(ctx, rc)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("plugin: instantiate wasi: %w", err)
	}

	r := &Runner{cfg: cfg, logger: logger, runtime: rt}
	if err := r.registerHostModule(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return r, nil
}

// registerHostModule exposes host_log(ptr, len) -> i32 to guests. It
// validates pointer+length strictly within guest memory before reading;
// out-of-bounds returns -1 rather than panicking (spec.md §4.6).
func (r *Runner) registerHostModule(ctx context.Context) error {
	_, err := r.runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, mod api.Module, ptr, length uint32) int32 {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return -1
			}
			r.logger.Info("plugin host_log", "message", string(buf))
			return 0
		}).
		Export("host_log").
		Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("plugin: register host module: %w", err)
	}
	return nil
}

// Close releases the underlying wazero runtime.
func (r *Runner) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

// fuelListener decrements a remaining-fuel counter on every guest
// function call and cancels the invocation's context once it reaches
// zero — wazero has no native fuel metering, so this presents the
// fuel/epoch semantics spec.md §4.6 describes on top of wazero's
// function-listener and context-cancellation primitives
// (SPEC_FULL.md §4.6).
type fuelListener struct {
	remaining *atomic.Int64
	cancel    context.CancelCauseFunc
}

func (f *fuelListener) NewListener(_ api.FunctionDefinition) experimental.FunctionListener { return f }

func (f *fuelListener) Before(_ context.Context, _ api.Module, _ api.FunctionDefinition, _ []uint64, _ experimental.StackIterator) {
	if f.remaining.Add(-1) <= 0 {
		f.cancel(ErrFuelExhausted)
	}
}

func (f *fuelListener) After(context.Context, api.Module, api.FunctionDefinition, []uint64) {}

func (f *fuelListener) Abort(context.Context, api.Module, api.FunctionDefinition, error) {}

// Invoke instantiates module and calls export, which must have the
// typed signature (i32, i32) -> i32 (spec.md §4.6 "Typed invocation").
func (r *Runner) Invoke(ctx context.Context, module []byte, export string, arg1, arg2 int32) (int32, error) {
	deadlineCtx, cancelDeadline := context.WithTimeoutCause(ctx, r.cfg.WallTimeout, ErrEpochInterrupted)
	defer cancelDeadline(nil)

	fuelCtx, cancelFuel := context.WithCancelCause(deadlineCtx)
	defer cancelFuel(nil)

	remaining := &atomic.Int64{}
	remaining.Store(int64(r.cfg.FuelBudget))
	invokeCtx := experimental.WithFunctionListenerFactory(fuelCtx, &fuelListener{remaining: remaining, cancel: cancelFuel})

	compiled, err := r.runtime.CompileModule(invokeCtx, module)
	if err != nil {
		return 0, fmt.Errorf("plugin: compile module: %w", err)
	}
	defer compiled.Close(invokeCtx)

	mod, err := r.runtime.InstantiateModule(invokeCtx, compiled, wazero.NewModuleConfig())
	if err != nil {
		return 0, classifyInterrupt(invokeCtx, err)
	}
	defer mod.Close(invokeCtx)

	fn := mod.ExportedFunction(export)
	if fn == nil {
		return 0, fmt.Errorf("plugin: export %q not found", export)
	}
	def := fn.Definition()
	if !hasSignature(def, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}) {
		return 0, fmt.Errorf("plugin: export %q does not match (i32, i32) -> i32", export)
	}

	results, err := fn.Call(invokeCtx, api.EncodeI32(arg1), api.EncodeI32(arg2))
	if err != nil {
		return 0, classifyInterrupt(invokeCtx, err)
	}
	return api.DecodeI32(results[0]), nil
}

func hasSignature(def api.FunctionDefinition, params, results []api.ValueType) bool {
	if len(def.ParamTypes()) != len(params) || len(def.ResultTypes()) != len(results) {
		return false
	}
	for i, t := range params {
		if def.ParamTypes()[i] != t {
			return false
		}
	}
	for i, t := range results {
		if def.ResultTypes()[i] != t {
			return false
		}
	}
	return true
}

// classifyInterrupt maps a context-cancellation-driven failure back to
// ErrFuelExhausted or ErrEpochInterrupted so callers can discriminate
// the cause, falling back to the original error otherwise.
func classifyInterrupt(ctx context.Context, cause error) error {
	switch {
	case errors.Is(context.Cause(ctx), ErrFuelExhausted):
		return ErrFuelExhausted
	case errors.Is(context.Cause(ctx), ErrEpochInterrupted):
		return ErrEpochInterrupted
	default:
		return cause
	}
}
