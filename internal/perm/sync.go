package perm

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/docshost/internal/registry"
)

// Sync recomputes the grant rows for one project from its registry state,
// delete-then-recreate. Called by the project-management layer whenever the
// private flag, collaborator set, or team associations change; the engine
// itself only ever reads the result.
//
// Rows produced:
//   - the owner login holds admin
//   - each collaborator holds pull
//   - each team associated with the project holds its permission level
//   - everyone holds pull when the project is not private
func Sync(ctx context.Context, grants *Store, project *registry.Project, teams []registry.Team) error {
	path := project.PermPath()
	if err := grants.ClearPath(ctx, path); err != nil {
		return err
	}

	if err := grants.GrantUser(ctx, project.Owner, path, ActionAdmin); err != nil {
		return err
	}
	for _, login := range project.Collaborators {
		if err := grants.GrantUser(ctx, login, path, ActionPull); err != nil {
			return err
		}
	}
	for _, t := range teams {
		action := Action(t.Permission)
		if !action.Valid() {
			return fmt.Errorf("team %s/%s has unknown permission %q", t.Organization, t.Name, t.Permission)
		}
		if err := grants.GrantTeam(ctx, t.ID, path, action); err != nil {
			return err
		}
	}
	if !project.Private {
		if err := grants.GrantEveryone(ctx, path, ActionPull); err != nil {
			return err
		}
	}
	return nil
}
