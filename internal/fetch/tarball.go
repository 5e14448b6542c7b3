package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	hosterr "git.home.luguber.info/inful/docshost/internal/errors"
	"git.home.luguber.info/inful/docshost/internal/logfields"
	"git.home.luguber.info/inful/docshost/internal/registry"
)

const archiveName = "source.tar.gz"

// TarballFetcher downloads the provider's tarball snapshot of the default
// branch. The archive is written into workDir and handed to the extraction
// stage untouched.
type TarballFetcher struct {
	apiURL string
	creds  CredentialResolver
	client *http.Client
}

// NewTarballFetcher creates a fetcher against the given provider API base
// URL, e.g. "https://api.github.com".
func NewTarballFetcher(apiURL string, creds CredentialResolver) *TarballFetcher {
	return &TarballFetcher{
		apiURL: apiURL,
		creds:  creds,
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (f *TarballFetcher) Fetch(ctx context.Context, project *registry.Project, workDir string) (*Source, error) {
	token, err := f.creds.ResolveBuildCredential(ctx, project.Owner)
	if err != nil {
		return nil, fmt.Errorf("resolve build credential: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/tarball", f.apiURL, project.Owner, project.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build tarball request: %w", err)
	}
	if token.IsSome() {
		req.Header.Set("Authorization", "token "+token.Unwrap())
	}

	slog.Debug("Fetching source tarball", logfields.Owner(project.Owner), logfields.Project(project.Name), logfields.URL(url))
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, hosterr.UpstreamUnavailable("fetch source tarball", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, hosterr.UpstreamUnavailable(
			fmt.Sprintf("tarball endpoint returned %d for %s/%s", resp.StatusCode, project.Owner, project.Name), nil)
	}

	path := filepath.Join(workDir, archiveName)
	out, err := os.Create(path) // #nosec G304 - workDir is pipeline-owned
	if err != nil {
		return nil, fmt.Errorf("create archive file: %w", err)
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, hosterr.UpstreamUnavailable("download source tarball", err)
	}

	slog.Info("Source tarball fetched", logfields.Owner(project.Owner), logfields.Project(project.Name), slog.Int64("bytes", n))
	return &Source{ArchivePath: path}, nil
}
