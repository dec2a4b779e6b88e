package hooks

import (
	"context"
	"sync"
)

// Manager keeps one TengoExecutor per dependency.
type Manager struct {
	mu        sync.RWMutex
	executors map[string]*TengoExecutor
}

// NewHookManager creates an empty hook manager.
func NewHookManager() *Manager {
	return &Manager{executors: make(map[string]*TengoExecutor)}
}

// AddHook implements HookManager.
func (m *Manager) AddHook(hook Hook) error {
	if hook.Type == "" {
		return ErrHookTypeEmpty
	}
	if !hook.Type.Valid() {
		return ErrUnsupportedHookEvent(string(hook.Type))
	}
	if hook.Dependency == "" {
		return ErrHookDependencyEmpty
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.executors[hook.Dependency]
	if !ok {
		ex = NewTengoExecutor()
		m.executors[hook.Dependency] = ex
	}
	ex.AddScript(hook.Type, hook.Content)
	return nil
}

// RemoveHook implements HookManager.
func (m *Manager) RemoveHook(dependency string, hookType HookType) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ex, ok := m.executors[dependency]; ok {
		ex.RemoveScript(hookType)
	}
	return nil
}

// HasHook implements HookManager.
func (m *Manager) HasHook(dependency string, hookType HookType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ex, ok := m.executors[dependency]
	return ok && ex.HasScript(hookType)
}

// Execute implements HookManager.
func (m *Manager) Execute(ctx context.Context, hookType HookType, hctx HookContext) error {
	m.mu.RLock()
	ex, ok := m.executors[hctx.Dependency]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return ex.Execute(ctx, hookType, hctx)
}
