package version

import "runtime/debug"

// Version is set via ldflags on release builds.
var Version string

// GetVersion returns the release version, falling back to VCS metadata from
// the build info.
func GetVersion() string {
	if Version != "" {
		return Version
	}

	return revision()
}

func revision() string {
	rev := "unknown"

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return rev
	}

	modified := false

	for _, v := range buildInfo.Settings {
		switch v.Key {
		case "vcs.revision":
			if len(v.Value) > 7 {
				rev = v.Value[:7]
			} else {
				rev = v.Value
			}

		case "vcs.modified":
			if v.Value == "true" {
				modified = true
			}
		}
	}

	if modified {
		return rev + "-dirty"
	}

	return rev
}
