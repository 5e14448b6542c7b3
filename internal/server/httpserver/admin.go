package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/docshost/internal/metrics"
	"git.home.luguber.info/inful/docshost/internal/perm"
	"git.home.luguber.info/inful/docshost/internal/pipeline"
	"git.home.luguber.info/inful/docshost/internal/version"
)

// adminHandler exposes health, Prometheus metrics, and build inspection.
// The listener is expected to be reachable only from the operator network.
func (s *Server) adminHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": version.Version})
	})

	if s.deps.Metrics != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.deps.Metrics))
	}

	// GET /builds/{owner}/{project} lists recent builds.
	// POST /builds/{owner}/{project} triggers one.
	mux.HandleFunc("/builds/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/builds/"), "/"), "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			http.NotFound(w, r)
			return
		}
		owner, project := parts[0], parts[1]

		switch r.Method {
		case http.MethodGet:
			list, err := s.deps.Builds.List(r.Context(), owner, project, 50)
			if err != nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(list)
		case http.MethodPost:
			// Triggering a build is a push-level action; denied callers
			// get the same 404 an unknown project would.
			allowed, err := s.deps.Permissions.Check(r.Context(), principal(r),
				"/"+owner+"/"+project+"/", perm.ActionPush)
			if err != nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			if !allowed {
				http.NotFound(w, r)
				return
			}

			b, err := s.deps.Orchestrator.Trigger(r.Context(), owner, project)
			if err != nil {
				if errors.Is(err, pipeline.ErrBuildInFlight) {
					http.Error(w, "a build is already in flight", http.StatusConflict)
					return
				}
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(b)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// GET /build/{id} returns one build with its captured output.
	mux.HandleFunc("/build/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/build/"), "/")
		if id == "" || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		rec, err := s.deps.Builds.Get(r.Context(), id)
		if err != nil {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		if rec.IsNone() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rec.Unwrap())
	})

	return mux
}
