// Package registry persists the accounts, projects, and teams that the build
// pipeline and the serving path read. Writes arrive from the surrounding
// project-management layer (provider sync, webhooks); the pipeline itself only
// reads projects and touches their modification date after a publish.
package registry

import (
	"time"
)

// AccountKind distinguishes individual users from organizations.
type AccountKind string

const (
	KindIndividual   AccountKind = "individual"
	KindOrganization AccountKind = "organization"
)

// Account is a tenant: an individual user or an organization. Individuals
// carry their own provider token; organizations borrow one from an Owners
// team member when building.
type Account struct {
	Login         string
	Name          string
	Kind          AccountKind
	ProviderToken string // individuals only; empty for organizations
}

// IsOrganization reports whether the account is an organization.
func (a *Account) IsOrganization() bool { return a.Kind == KindOrganization }

// Project describes a documentation target. (Owner, Name) is unique.
type Project struct {
	Owner            string
	Name             string
	Description      string
	Private          bool
	URL              string // provider web URL (html_url) or app URL
	GitURL           string
	Language         string
	Generator        string // generator kind name, e.g. "sphinx"
	DocsPath         string // defaults to "docs"
	RequirementsPath string
	CustomDomains    []string
	Collaborators    []string // user logins with read access
	PubDate          time.Time
	ModDate          time.Time
}

// StorageKeyPrefix returns the object-store prefix for this project's
// published artifacts.
func (p *Project) StorageKeyPrefix() string { return p.Owner + "/" + p.Name }

// PermPath returns the normalized permission path for this project.
func (p *Project) PermPath() string { return "/" + p.Owner + "/" + p.Name + "/" }

// Permission levels a team may hold over its repositories.
const (
	TeamPermAdmin = "admin"
	TeamPermPush  = "push"
	TeamPermPull  = "pull"
)

// OwnersTeamName is the distinguished team conferring administrative rights
// over all of an organization's projects.
const OwnersTeamName = "Owners"

// Team is an organization-scoped named group with a permission level.
type Team struct {
	ID           int64
	Organization string
	Name         string
	Permission   string // admin|push|pull
	Members      []string
	Repos        []string // project names within the organization
}
