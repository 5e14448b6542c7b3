package registry

import (
	"context"

	"git.home.luguber.info/inful/docshost/internal/foundation"
)

// ResolveBuildCredential selects the provider token used to fetch a project's
// source on behalf of its owner. Individuals use their own token; for an
// organization the token of any Owners-team member holding a non-empty token
// is borrowed. A None means no credential is available; fetchers then go
// unauthenticated, which works for public repositories and lets the
// provider reject private ones.
func (s *Store) ResolveBuildCredential(ctx context.Context, owner string) (foundation.Option[string], error) {
	acct, err := s.GetAccount(ctx, owner)
	if err != nil {
		return foundation.None[string](), err
	}
	if acct.IsNone() {
		return foundation.None[string](), nil
	}

	a := acct.Unwrap()
	if !a.IsOrganization() {
		if a.ProviderToken == "" {
			return foundation.None[string](), nil
		}
		return foundation.Some(a.ProviderToken), nil
	}

	holders, err := s.OwnersTokenHolders(ctx, a.Login)
	if err != nil {
		return foundation.None[string](), err
	}
	if len(holders) == 0 {
		return foundation.None[string](), nil
	}
	return foundation.Some(holders[0].ProviderToken), nil
}
