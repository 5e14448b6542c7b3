package perm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docshost/internal/registry"
)

func TestSyncPublicProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	project := &registry.Project{
		Owner: "alice", Name: "demo", Private: false,
		Collaborators: []string{"bob"},
	}
	require.NoError(t, f.registry.CreateProject(ctx, project))
	require.NoError(t, Sync(ctx, f.grants, project, nil))

	assert.True(t, f.check(t, "alice", "/alice/demo/", ActionAdmin))
	assert.True(t, f.check(t, "bob", "/alice/demo/", ActionPull))
	assert.False(t, f.check(t, "bob", "/alice/demo/", ActionPush))
	assert.True(t, f.check(t, "", "/alice/demo/", ActionPull))
}

func TestSyncPrivateProjectWithTeams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	project := &registry.Project{Owner: "bob-org", Name: "secret", Private: true}
	require.NoError(t, f.registry.CreateProject(ctx, project))

	pushers, err := f.registry.CreateTeam(ctx, &registry.Team{
		Organization: "bob-org", Name: "writers", Permission: registry.TeamPermPush,
		Members: []string{"erin"}, Repos: []string{"secret"},
	})
	require.NoError(t, err)
	readers, err := f.registry.CreateTeam(ctx, &registry.Team{
		Organization: "bob-org", Name: "core", Permission: registry.TeamPermPull,
		Members: []string{"dave"}, Repos: []string{"secret"},
	})
	require.NoError(t, err)

	teams := []registry.Team{
		{ID: pushers, Organization: "bob-org", Name: "writers", Permission: registry.TeamPermPush},
		{ID: readers, Organization: "bob-org", Name: "core", Permission: registry.TeamPermPull},
	}
	require.NoError(t, Sync(ctx, f.grants, project, teams))

	assert.True(t, f.check(t, "erin", "/bob-org/secret/", ActionPush))
	assert.True(t, f.check(t, "erin", "/bob-org/secret/", ActionPull))
	assert.True(t, f.check(t, "dave", "/bob-org/secret/", ActionPull))
	assert.False(t, f.check(t, "dave", "/bob-org/secret/", ActionPush))
	assert.False(t, f.check(t, "", "/bob-org/secret/", ActionPull))
	assert.False(t, f.check(t, "carol", "/bob-org/secret/", ActionPull))
}

func TestSyncRecomputesOnVisibilityChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	project := &registry.Project{Owner: "alice", Name: "demo", Private: false}
	require.NoError(t, f.registry.CreateProject(ctx, project))
	require.NoError(t, Sync(ctx, f.grants, project, nil))
	assert.True(t, f.check(t, "", "/alice/demo/", ActionPull))

	// Flipping the project private drops the public row on resync and the
	// fallback no longer applies either.
	project.Private = true
	require.NoError(t, f.registry.UpdateProject(ctx, project))
	require.NoError(t, Sync(ctx, f.grants, project, nil))

	assert.False(t, f.check(t, "", "/alice/demo/", ActionPull))
	assert.True(t, f.check(t, "alice", "/alice/demo/", ActionPull))
}

func TestSyncRejectsUnknownTeamPermission(t *testing.T) {
	f := newFixture(t)
	project := &registry.Project{Owner: "bob-org", Name: "secret", Private: true}
	err := Sync(context.Background(), f.grants, project, []registry.Team{
		{ID: 1, Organization: "bob-org", Name: "odd", Permission: "owner"},
	})
	assert.Error(t, err)
}
