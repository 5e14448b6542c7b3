package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/docshost/internal/foundation"
	"git.home.luguber.info/inful/docshost/internal/logfields"
	"git.home.luguber.info/inful/docshost/internal/pipeline"
	"git.home.luguber.info/inful/docshost/internal/registry"
)

const maxWebhookBody = 1 << 20

// githubPush is the subset of a GitHub push payload the webhook consumes.
type githubPush struct {
	Repository struct {
		URL     string `json:"url"`
		HTMLURL string `json:"html_url"`
		GitURL  string `json:"git_url"`
	} `json:"repository"`
}

// webhookHandler accepts provider push notifications and triggers builds.
// GitHub posts JSON; Heroku deploy hooks post form fields. Either way the
// project is located by its recorded URL. The response is deliberately
// bland: providers only care about the status code, and a 200 for an
// in-flight build stops them from retrying a notification we have already
// acted on.
func (s *Server) webhookHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/github", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		// GitHub can deliver either raw JSON or a form-wrapped payload.
		var body []byte
		if strings.Contains(r.Header.Get("Content-Type"), "form-urlencoded") {
			r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
			body = []byte(r.PostFormValue("payload"))
		} else {
			var err error
			body, err = io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
		}
		var push githubPush
		if err := json.Unmarshal(body, &push); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		s.triggerForURLs(w, r, push.Repository.HTMLURL, push.Repository.URL, push.Repository.GitURL)
	})
	mux.HandleFunc("/webhook/heroku", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.triggerForURLs(w, r, r.FormValue("url"))
	})
	return mux
}

func (s *Server) triggerForURLs(w http.ResponseWriter, r *http.Request, urls ...string) {
	var proj foundation.Option[*registry.Project]
	for _, u := range urls {
		if u == "" {
			continue
		}
		found, err := s.deps.Registry.GetProjectByURL(r.Context(), u)
		if err != nil {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		if found.IsSome() {
			proj = found
			break
		}
	}
	if proj.IsNone() {
		http.NotFound(w, r)
		return
	}

	p := proj.Unwrap()
	b, err := s.deps.Orchestrator.Trigger(r.Context(), p.Owner, p.Name)
	if err != nil {
		if errors.Is(err, pipeline.ErrBuildInFlight) {
			_, _ = io.WriteString(w, "Thanks, already building\n")
			return
		}
		slog.Error("Webhook trigger failed", logfields.Owner(p.Owner), logfields.Project(p.Name), logfields.Error(err))
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	slog.Info("Webhook accepted", logfields.Owner(p.Owner), logfields.Project(p.Name), logfields.BuildID(b.ID))
	_, _ = io.WriteString(w, "Thanks\n")
}
