// Package perm is the path-scoped access-control engine. Grants are rows of
// (principal, path, action) where a principal is a specific user, a team,
// or everyone; paths are normalized to the /owner/project/ prefix. The
// engine is a pure decision function over those rows plus the project's
// private flag; it fails closed.
package perm

import (
	"strings"
)

// Action is a permission level on a project path.
type Action string

const (
	// ActionAdmin covers project administration.
	ActionAdmin Action = "admin"
	// ActionPush covers publishing and triggering builds.
	ActionPush Action = "push"
	// ActionPull covers reading published artifacts.
	ActionPull Action = "pull"
)

// Valid reports whether a names a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionAdmin, ActionPush, ActionPull:
		return true
	}
	return false
}

// implies reports whether holding a covers the requested action. Levels
// nest: admin > push > pull.
func (a Action) implies(requested Action) bool {
	switch a {
	case ActionAdmin:
		return true
	case ActionPush:
		return requested == ActionPush || requested == ActionPull
	case ActionPull:
		return requested == ActionPull
	}
	return false
}

// NormalizePath reduces any tenant-scoped path to its /owner/project/
// grant prefix. An empty result means the path has fewer than two
// segments and can never match a grant.
func NormalizePath(path string) string {
	parts := make([]string, 0, 2)
	for _, p := range strings.Split(path, "/") {
		if p == "" || p == "." || p == ".." {
			continue
		}
		parts = append(parts, p)
		if len(parts) == 2 {
			break
		}
	}
	if len(parts) < 2 {
		return ""
	}
	return "/" + parts[0] + "/" + parts[1] + "/"
}
