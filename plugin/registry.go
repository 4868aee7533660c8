package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds every plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onRecordRegistered []OnRecordRegistered
	onRecordVerified   []OnRecordVerified
	onEmissionUpdated  []OnEmissionUpdated
	onOperationFailed  []OnOperationFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout overrides the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnRecordRegistered); ok {
		r.onRecordRegistered = append(r.onRecordRegistered, v)
		hooks = append(hooks, "OnRecordRegistered")
	}
	if v, ok := p.(OnRecordVerified); ok {
		r.onRecordVerified = append(r.onRecordVerified, v)
		hooks = append(hooks, "OnRecordVerified")
	}
	if v, ok := p.(OnEmissionUpdated); ok {
		r.onEmissionUpdated = append(r.onEmissionUpdated, v)
		hooks = append(hooks, "OnEmissionUpdated")
	}
	if v, ok := p.(OnOperationFailed); ok {
		r.onOperationFailed = append(r.onOperationFailed, v)
		hooks = append(hooks, "OnOperationFailed")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// dispatch runs call for every plugin in hooks, logging failures.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, hooks []T, call func(context.Context, T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func(ctx context.Context) error {
			return call(ctx, p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	dispatch(ctx, r, "OnInit", plugins, func(ctx context.Context, p OnInit) error {
		return p.OnInit(ctx, ledger)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	dispatch(ctx, r, "OnShutdown", plugins, func(ctx context.Context, p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitRecordRegistered emits a record registered event.
func (r *Registry) EmitRecordRegistered(ctx context.Context, ev *RecordEvent) {
	r.mu.RLock()
	plugins := r.onRecordRegistered
	r.mu.RUnlock()

	dispatch(ctx, r, "OnRecordRegistered", plugins, func(ctx context.Context, p OnRecordRegistered) error {
		return p.OnRecordRegistered(ctx, ev)
	})
}

// EmitRecordVerified emits a record verified event.
func (r *Registry) EmitRecordVerified(ctx context.Context, ev *RecordEvent) {
	r.mu.RLock()
	plugins := r.onRecordVerified
	r.mu.RUnlock()

	dispatch(ctx, r, "OnRecordVerified", plugins, func(ctx context.Context, p OnRecordVerified) error {
		return p.OnRecordVerified(ctx, ev)
	})
}

// EmitEmissionUpdated emits an emission updated event.
func (r *Registry) EmitEmissionUpdated(ctx context.Context, ev *RecordEvent) {
	r.mu.RLock()
	plugins := r.onEmissionUpdated
	r.mu.RUnlock()

	dispatch(ctx, r, "OnEmissionUpdated", plugins, func(ctx context.Context, p OnEmissionUpdated) error {
		return p.OnEmissionUpdated(ctx, ev)
	})
}

// EmitOperationFailed emits an operation failed event.
func (r *Registry) EmitOperationFailed(ctx context.Context, ev *FailureEvent) {
	r.mu.RLock()
	plugins := r.onOperationFailed
	r.mu.RUnlock()

	dispatch(ctx, r, "OnOperationFailed", plugins, func(ctx context.Context, p OnOperationFailed) error {
		return p.OnOperationFailed(ctx, ev)
	})
}

// callWithTimeout calls a plugin function with a timeout. Hooks run after
// the ledger operation has committed, so cancellation of the caller's
// context does not stop delivery; only the registry timeout does.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func(context.Context) error) error {
	hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(hookCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-hookCtx.Done():
		return fmt.Errorf("plugin timeout: %s", pluginName)
	}
}
