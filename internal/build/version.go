package build

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

const Name = "cached-fetcher"

// FullVersion returns the version string with commit hash appended.
// Format: "Version+Commit" (e.g., "1.0.0+abc123")
func FullVersion() string {
	return Version + "+" + Commit
}

// UserAgent is the default User-Agent header value, "cached-fetcher/<version>".
func UserAgent() string {
	return Name + "/" + Version
}
