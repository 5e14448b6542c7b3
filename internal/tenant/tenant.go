// Package tenant maps a request host to the project whose documentation it
// serves. Two shapes exist: owner subdomains of the base domain, where the
// first path segment names the project, and custom domains registered
// against a specific project.
package tenant

import (
	"context"
	"fmt"
	"net"
	"strings"

	"golang.org/x/text/cases"

	hosterr "git.home.luguber.info/inful/docshost/internal/errors"
	"git.home.luguber.info/inful/docshost/internal/foundation"
	"git.home.luguber.info/inful/docshost/internal/registry"
)

// Site is a resolved serving target.
type Site struct {
	Owner   string
	Project string
	// RelPath is the artifact path within the project, already defaulted
	// to index.html for directory requests.
	RelPath string
}

// StorageKey returns the object-store key this site resolves to.
func (s *Site) StorageKey() string {
	return s.Owner + "/" + s.Project + "/" + s.RelPath
}

// PermPath returns the permission path this site is gated by.
func (s *Site) PermPath() string {
	return "/" + s.Owner + "/" + s.Project + "/"
}

// DomainLookup resolves custom domains to projects. registry.Store
// satisfies it.
type DomainLookup interface {
	GetProjectByDomain(ctx context.Context, domain string) (foundation.Option[*registry.Project], error)
}

// Resolver resolves request hosts against a base domain and the custom
// domain table.
type Resolver struct {
	baseDomain string // e.g. "docshost.example", lowercased
	domains    DomainLookup
	fold       cases.Caser
}

// NewResolver creates a resolver for the given base serving domain.
func NewResolver(baseDomain string, domains DomainLookup) *Resolver {
	folder := cases.Fold()
	return &Resolver{
		baseDomain: folder.String(strings.TrimSuffix(baseDomain, ".")),
		domains:    domains,
		fold:       folder,
	}
}

// Resolve maps (host, urlPath) to a Site. Unknown hosts and paths outside
// any project yield a notfound error; existence of other tenants is never
// leaked.
func (r *Resolver) Resolve(ctx context.Context, host, urlPath string) (*Site, error) {
	h := r.normalizeHost(host)
	if h == "" {
		return nil, hosterr.NotFound("empty host")
	}

	if owner, ok := r.subdomainOwner(h); ok {
		project, rel := splitProjectPath(urlPath)
		if project == "" {
			return nil, hosterr.NotFound(fmt.Sprintf("no project in path %q", urlPath))
		}
		return &Site{Owner: owner, Project: project, RelPath: rel}, nil
	}

	proj, err := r.domains.GetProjectByDomain(ctx, h)
	if err != nil {
		return nil, err
	}
	if proj.IsNone() {
		return nil, hosterr.NotFound(fmt.Sprintf("unknown host %s", host))
	}
	p := proj.Unwrap()
	return &Site{Owner: p.Owner, Project: p.Name, RelPath: relPath(urlPath)}, nil
}

// normalizeHost strips the port and trailing dot and case-folds.
func (r *Resolver) normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return r.fold.String(strings.TrimSuffix(host, "."))
}

// subdomainOwner extracts the owner login from a single-label subdomain of
// the base domain. The bare base domain is not a tenant.
func (r *Resolver) subdomainOwner(host string) (string, bool) {
	suffix := "." + r.baseDomain
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	label := strings.TrimSuffix(host, suffix)
	if label == "" || strings.Contains(label, ".") {
		return "", false
	}
	return label, true
}

// splitProjectPath takes the first path segment as the project name.
func splitProjectPath(urlPath string) (project, rel string) {
	trimmed := strings.TrimPrefix(urlPath, "/")
	project, rest, _ := strings.Cut(trimmed, "/")
	return project, relPath("/" + rest)
}

// relPath normalizes an artifact path, defaulting directories to
// index.html.
func relPath(urlPath string) string {
	trimmed := strings.TrimPrefix(urlPath, "/")
	if trimmed == "" || strings.HasSuffix(trimmed, "/") {
		return trimmed + "index.html"
	}
	return trimmed
}
