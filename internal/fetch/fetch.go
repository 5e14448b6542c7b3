// Package fetch materializes project source for a build. The primary
// strategy downloads the provider's tarball endpoint; when that is not
// usable the repository is cloned instead. Either way the result lands
// under the build's working directory.
package fetch

import (
	"context"

	"git.home.luguber.info/inful/docshost/internal/foundation"
	"git.home.luguber.info/inful/docshost/internal/registry"
)

// Source is fetched project source awaiting extraction. Exactly one of the
// fields is set: a tarball still to be unpacked, or a directory already
// holding the checked-out tree.
type Source struct {
	ArchivePath string
	CheckoutDir string
}

// CredentialResolver supplies the provider token used for authenticated
// fetches. registry.Store satisfies it.
type CredentialResolver interface {
	ResolveBuildCredential(ctx context.Context, owner string) (foundation.Option[string], error)
}

// Fetcher retrieves a project's source into workDir.
type Fetcher interface {
	Fetch(ctx context.Context, project *registry.Project, workDir string) (*Source, error)
}
