package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docshost/internal/db"
	hosterr "git.home.luguber.info/inful/docshost/internal/errors"
	"git.home.luguber.info/inful/docshost/internal/registry"
)

func newResolver(t *testing.T) (*Resolver, *registry.Store) {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	reg, err := registry.NewStore(conn)
	require.NoError(t, err)
	return NewResolver("docshost.example", reg), reg
}

func TestResolveSubdomain(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()

	site, err := r.Resolve(ctx, "alice.docshost.example", "/demo/api/client.html")
	require.NoError(t, err)
	assert.Equal(t, "alice", site.Owner)
	assert.Equal(t, "demo", site.Project)
	assert.Equal(t, "api/client.html", site.RelPath)
	assert.Equal(t, "alice/demo/api/client.html", site.StorageKey())
	assert.Equal(t, "/alice/demo/", site.PermPath())
}

func TestResolveDirectoryDefaultsToIndex(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()

	site, err := r.Resolve(ctx, "alice.docshost.example", "/demo/")
	require.NoError(t, err)
	assert.Equal(t, "index.html", site.RelPath)

	site, err = r.Resolve(ctx, "alice.docshost.example", "/demo/guide/")
	require.NoError(t, err)
	assert.Equal(t, "guide/index.html", site.RelPath)
}

func TestResolveHostNormalization(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()

	site, err := r.Resolve(ctx, "Alice.DocsHost.Example:8080", "/demo/")
	require.NoError(t, err)
	assert.Equal(t, "alice", site.Owner)

	site, err = r.Resolve(ctx, "alice.docshost.example.", "/demo/")
	require.NoError(t, err)
	assert.Equal(t, "alice", site.Owner)
}

func TestResolveCustomDomain(t *testing.T) {
	r, reg := newResolver(t)
	ctx := context.Background()

	require.NoError(t, reg.CreateProject(ctx, &registry.Project{
		Owner: "alice", Name: "demo", CustomDomains: []string{"docs.alice.dev"},
	}))

	site, err := r.Resolve(ctx, "docs.alice.dev", "/guide/setup.html")
	require.NoError(t, err)
	assert.Equal(t, "alice", site.Owner)
	assert.Equal(t, "demo", site.Project)
	assert.Equal(t, "guide/setup.html", site.RelPath)

	site, err = r.Resolve(ctx, "DOCS.ALICE.DEV", "/")
	require.NoError(t, err)
	assert.Equal(t, "index.html", site.RelPath)
}

func TestResolveUnknownHost(t *testing.T) {
	r, _ := newResolver(t)
	_, err := r.Resolve(context.Background(), "stranger.example", "/")
	require.Error(t, err)
	assert.True(t, hosterr.IsCategory(err, hosterr.CategoryNotFound))
}

func TestResolveRejectsNonTenantShapes(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()

	// The bare base domain is not a tenant.
	_, err := r.Resolve(ctx, "docshost.example", "/demo/")
	assert.Error(t, err)

	// Nested subdomains are not tenants either.
	_, err = r.Resolve(ctx, "a.b.docshost.example", "/demo/")
	assert.Error(t, err)

	// A subdomain with no project segment has nothing to serve.
	_, err = r.Resolve(ctx, "alice.docshost.example", "/")
	require.Error(t, err)
	assert.True(t, hosterr.IsCategory(err, hosterr.CategoryNotFound))
}
