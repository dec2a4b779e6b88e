// Package hooks runs user-supplied Tengo scripts after a dependency has been
// installed or updated.
package hooks

import "context"

// HookType represents the type of hooks.
type HookType string

// Supported hooks types.
const (
	PostInstall HookType = "post-install"
	PostUpdate  HookType = "post-update"
)

// Valid reports whether t is a supported hook type.
func (t HookType) Valid() bool {
	return t == PostInstall || t == PostUpdate
}

// Hook represents a hook script bound to one dependency.
type Hook struct {
	Dependency string
	Type       HookType
	Content    string
}

// HookContext contains information passed to hooks.
type HookContext struct {
	Dependency string
	Version    string
	// Path is the canonical path of the provisioned dependency.
	Path     string
	BinDir   string
	Platform string
	Vars     map[string]interface{}
}

// HookManager defines the interface for managing hooks.
type HookManager interface {
	// Execute runs the hook of hookType registered for hctx.Dependency, if any.
	Execute(ctx context.Context, hookType HookType, hctx HookContext) error

	// AddHook adds or replaces a hook.
	AddHook(hook Hook) error

	// RemoveHook removes the hook of hookType for dependency.
	RemoveHook(dependency string, hookType HookType) error

	// HasHook checks if a hook of hookType exists for dependency.
	HasHook(dependency string, hookType HookType) bool
}
