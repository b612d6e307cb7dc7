package version

import "time"

var (
	// Version is the release version (set via -ldflags).
	Version = ""
	// Commit is the git commit hash (set via -ldflags).
	Commit = ""
	// BuildTime is the build timestamp (set via -ldflags).
	BuildTime = ""
)

// String returns a human-readable version, falling back to the build time
// when no release version was stamped.
func String() string {
	v := Version
	if v == "" {
		if BuildTime != "" {
			v = BuildTime
		} else {
			v = time.Now().UTC().Format("20060102T150405Z")
		}
	}
	if Commit == "" {
		return v
	}
	return v + " (" + shortCommit(Commit) + ")"
}

func shortCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}
