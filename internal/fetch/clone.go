package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	hosterr "git.home.luguber.info/inful/docshost/internal/errors"
	"git.home.luguber.info/inful/docshost/internal/logfields"
	"git.home.luguber.info/inful/docshost/internal/registry"
)

// CloneFetcher materializes source with a shallow git clone. Used when the
// provider has no tarball endpoint or the tarball fetch failed.
type CloneFetcher struct {
	creds CredentialResolver
}

// NewCloneFetcher creates a clone-based fetcher.
func NewCloneFetcher(creds CredentialResolver) *CloneFetcher {
	return &CloneFetcher{creds: creds}
}

func (f *CloneFetcher) Fetch(ctx context.Context, project *registry.Project, workDir string) (*Source, error) {
	if project.GitURL == "" {
		return nil, hosterr.UpstreamUnavailable(
			fmt.Sprintf("project %s/%s has no git URL", project.Owner, project.Name), nil)
	}

	opts := &gogit.CloneOptions{URL: project.GitURL, Depth: 1, SingleBranch: true}
	token, err := f.creds.ResolveBuildCredential(ctx, project.Owner)
	if err != nil {
		return nil, fmt.Errorf("resolve build credential: %w", err)
	}
	if token.IsSome() {
		// Token-over-HTTPS; the username is irrelevant to the provider.
		opts.Auth = &githttp.BasicAuth{Username: "docshost", Password: token.Unwrap()}
	}

	checkout := filepath.Join(workDir, "checkout")
	slog.Debug("Cloning repository", logfields.Owner(project.Owner), logfields.Project(project.Name), logfields.URL(project.GitURL))
	if _, err := gogit.PlainCloneContext(ctx, checkout, false, opts); err != nil {
		return nil, hosterr.UpstreamUnavailable(
			fmt.Sprintf("clone %s", project.GitURL), err)
	}
	return &Source{CheckoutDir: checkout}, nil
}

// FallbackFetcher tries the tarball endpoint first and falls back to a
// clone when the tarball fetch reports an upstream failure.
type FallbackFetcher struct {
	primary   Fetcher
	secondary Fetcher
}

// NewFallbackFetcher composes a tarball-then-clone fetch strategy.
func NewFallbackFetcher(primary, secondary Fetcher) *FallbackFetcher {
	return &FallbackFetcher{primary: primary, secondary: secondary}
}

func (f *FallbackFetcher) Fetch(ctx context.Context, project *registry.Project, workDir string) (*Source, error) {
	src, err := f.primary.Fetch(ctx, project, workDir)
	if err == nil {
		return src, nil
	}
	if !hosterr.IsCategory(err, hosterr.CategoryUpstream) || ctx.Err() != nil {
		return nil, err
	}
	slog.Warn("Tarball fetch failed, falling back to clone",
		logfields.Owner(project.Owner), logfields.Project(project.Name), logfields.Error(err))
	return f.secondary.Fetch(ctx, project, workDir)
}
