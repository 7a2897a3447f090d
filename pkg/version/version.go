// Package version resolves the build identity reported in logs and on the
// health endpoint. The commit comes from -ldflags when set, from the
// module's VCS build info otherwise, and degrades to "dev" for test and
// non-git builds.
package version

import "runtime/debug"

// AppName prefixes every version string.
const AppName = "maestro"

// gitCommitOverride can be injected at build time:
//
//	go build -ldflags "-X .../pkg/version.gitCommitOverride=$(git rev-parse HEAD)"
//
// Container builds use this because the build context carries no .git.
var gitCommitOverride string

// GitCommit is the short (8-char) commit hash identifying this build.
var GitCommit = initGitCommit()

func initGitCommit() string {
	if gitCommitOverride != "" {
		return shorten(gitCommitOverride)
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return shorten(s.Value)
		}
	}
	return "dev"
}

func shorten(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns the "maestro/<commit>" identity string.
func Full() string {
	return AppName + "/" + GitCommit
}
