package version

import "fmt"

// Name is the binary name reported to users and remote services.
const Name = "triage"

// These variables are set at build time via ldflags
var (
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns the version string (commit-hash based, no semver)
func String() string {
	return fmt.Sprintf("%s dev (commit: %s, built: %s)", Name, shortCommit(), BuildTime)
}

// UserAgent identifies this build in outbound HTTP requests.
func UserAgent() string {
	return Name + "/" + shortCommit()
}

func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}
