package perm

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/docshost/internal/foundation"
	"git.home.luguber.info/inful/docshost/internal/logfields"
	"git.home.luguber.info/inful/docshost/internal/registry"
)

// ProjectLookup supplies the private flag consulted by the public-pull
// fallback. registry.Store satisfies it.
type ProjectLookup interface {
	GetProject(ctx context.Context, owner, name string) (foundation.Option[*registry.Project], error)
}

// Denials counts permission denies for metrics. May be nil.
type Denials interface {
	IncPermissionDenied(action string)
}

// Engine evaluates permission checks against the grant table.
type Engine struct {
	grants   *Store
	projects ProjectLookup
	denials  Denials
}

// NewEngine creates a permission engine.
func NewEngine(grants *Store, projects ProjectLookup) *Engine {
	return &Engine{grants: grants, projects: projects}
}

// WithDenialCounter installs a denial metric hook.
func (e *Engine) WithDenialCounter(d Denials) *Engine {
	e.denials = d
	return e
}

// Check decides whether principal may perform action on path. An empty
// principal is anonymous. Grants are consulted most-specific first: a
// user grant, then team grants through membership, then public grants.
// When no row matches, pull is still allowed on projects not marked
// private. Everything else denies, including unknown paths and lookup
// errors on the private flag.
func (e *Engine) Check(ctx context.Context, principal, path string, action Action) (bool, error) {
	norm := NormalizePath(path)
	if norm == "" || !action.Valid() {
		e.deny(principal, path, action)
		return false, nil
	}

	if principal != "" {
		ok, err := e.grants.userHolds(ctx, principal, norm, action)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		ok, err = e.grants.teamHolds(ctx, principal, norm, action)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	ok, err := e.grants.everyoneHolds(ctx, norm, action)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	if action == ActionPull {
		public, err := e.projectIsPublic(ctx, norm)
		if err != nil {
			return false, err
		}
		if public {
			return true, nil
		}
	}

	e.deny(principal, path, action)
	return false, nil
}

// projectIsPublic resolves norm's project row and reports whether it
// exists and is not private. An unknown project never grants anything.
func (e *Engine) projectIsPublic(ctx context.Context, norm string) (bool, error) {
	owner, name, err := splitPermPath(norm)
	if err != nil {
		return false, nil
	}
	proj, err := e.projects.GetProject(ctx, owner, name)
	if err != nil {
		return false, err
	}
	if proj.IsNone() {
		return false, nil
	}
	return !proj.Unwrap().Private, nil
}

func (e *Engine) deny(principal, path string, action Action) {
	slog.Debug("Permission denied", slog.String("principal", principal), logfields.Path(path), slog.String("action", string(action)))
	if e.denials != nil {
		e.denials.IncPermissionDenied(string(action))
	}
}

func splitPermPath(norm string) (owner, name string, err error) {
	trimmed := norm
	if len(trimmed) < 2 || trimmed[0] != '/' || trimmed[len(trimmed)-1] != '/' {
		return "", "", fmt.Errorf("malformed permission path %q", norm)
	}
	trimmed = trimmed[1 : len(trimmed)-1]
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] == '/' {
			return trimmed[:i], trimmed[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("malformed permission path %q", norm)
}
