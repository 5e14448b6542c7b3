package version

// Version is the service version, set via build-time ldflags:
// go build -ldflags "-X git.home.luguber.info/inful/docshost/internal/version.Version=v1.2.0".
var Version = "unknown"

// Build metadata, also ldflags-injected.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)
