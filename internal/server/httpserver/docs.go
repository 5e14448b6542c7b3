package httpserver

import (
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	hosterr "git.home.luguber.info/inful/docshost/internal/errors"
	"git.home.luguber.info/inful/docshost/internal/logfields"
	"git.home.luguber.info/inful/docshost/internal/perm"
	"git.home.luguber.info/inful/docshost/internal/storage"
)

// principal extracts the authenticated user for permission checks. The
// serving layer sits behind an authenticating proxy that asserts the login
// in X-Forwarded-User; basic-auth usernames are honored for direct tooling
// access. An empty principal is anonymous.
func principal(r *http.Request) string {
	if u := r.Header.Get("X-Forwarded-User"); u != "" {
		return u
	}
	if u, _, ok := r.BasicAuth(); ok {
		return u
	}
	return ""
}

// docsHandler serves published artifacts: host resolution, pull check,
// cached read-through to storage. Denied and missing both answer 404 so
// project existence is not leaked.
func (s *Server) docsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		site, err := s.deps.Resolver.Resolve(r.Context(), r.Host, r.URL.Path)
		if err != nil {
			if hosterr.IsCategory(err, hosterr.CategoryNotFound) {
				http.NotFound(w, r)
				return
			}
			slog.Error("Tenant resolution failed", logfields.Host(r.Host), logfields.Error(err))
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		allowed, err := s.deps.Permissions.Check(r.Context(), principal(r), site.PermPath(), perm.ActionPull)
		if err != nil {
			slog.Error("Permission check failed", logfields.Path(site.PermPath()), logfields.Error(err))
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		if !allowed {
			http.NotFound(w, r)
			return
		}

		data, modTime, err := s.deps.Cache.Get(r.Context(), site.StorageKey())
		if err != nil {
			if storage.IsNotFound(err) {
				http.NotFound(w, r)
				return
			}
			slog.Error("Artifact read failed", logfields.Key(site.StorageKey()), logfields.Error(err))
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		// Staleness is tied to the project's modification date, which a
		// successful publish bumps. The cache fill time would move on
		// every restart or invalidation and break revalidation.
		lastMod := modTime
		if proj, perr := s.deps.Registry.GetProject(r.Context(), site.Owner, site.Project); perr == nil && proj.IsSome() {
			lastMod = proj.Unwrap().ModDate
		}

		if since := r.Header.Get("If-Modified-Since"); since != "" {
			if t, perr := http.ParseTime(since); perr == nil && !lastMod.Truncate(time.Second).After(t) {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}

		w.Header().Set("Content-Type", contentType(site.RelPath))
		w.Header().Set("Last-Modified", lastMod.UTC().Format(http.TimeFormat))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(data)
	})
}

func contentType(relPath string) string {
	if ct := mime.TypeByExtension(filepath.Ext(relPath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
