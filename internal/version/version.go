package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// These variables can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/muurk/kvmswitch/internal/version.Version=v1.0.0 \
//	                   -X github.com/muurk/kvmswitch/internal/version.Commit=abc1234"
//
// Otherwise they are filled from the VCS stamp in the build info, or fall
// back to "dev".
var (
	// Version is the semantic version of the application
	Version = ""
	// Commit is the git commit hash
	Commit = ""
	// Date is the commit or build date (YYYY-MM-DD)
	Date = ""
)

func init() {
	if Version == "" || Commit == "" || Date == "" {
		populateFromBuildInfo(readBuildInfo())
	}

	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func readBuildInfo() *debug.BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return info
}

// populateFromBuildInfo fills unset variables from Go's build info.
// Module versions (go install ...@v1.2.3) win over VCS-derived dev versions.
func populateFromBuildInfo(info *debug.BuildInfo) {
	if info == nil {
		return
	}

	if Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	var vcsRevision, vcsModified, vcsTime string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			vcsRevision = setting.Value
		case "vcs.modified":
			vcsModified = setting.Value
		case "vcs.time":
			vcsTime = setting.Value
		}
	}

	if Commit == "" && vcsRevision != "" {
		Commit = vcsRevision
		if len(Commit) > 7 {
			Commit = Commit[:7]
		}
		if vcsModified == "true" {
			Commit += "-dirty"
		}
	}

	if vcsTime != "" {
		if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
			if Date == "" {
				Date = t.Format("2006-01-02")
			}
			if Version == "" {
				Version = "dev-" + t.Format("20060102")
			}
		}
	}
}

// Short returns the version alone, as shown in the CLI header line
func Short() string {
	return Version
}

// Full returns the full version string including commit
func Full() string {
	s := fmt.Sprintf("%s (commit: %s", Version, Commit)
	if Date != "" {
		s += ", " + Date
	}
	return s + ")"
}

// Platform returns the Go version and target the binary was built for
func Platform() string {
	return fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
