// Package version reports build metadata for the tabi binary. Values
// come from -ldflags when set by the release pipeline, with the module
// build info as a fallback for plain `go install` builds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set via -ldflags at release time, e.g.
//
//	-X github.com/tabi-dev/tabi/internal/version.Version=v0.3.0
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

// Info is the resolved build metadata.
type Info struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit,omitempty"`
	BuildDate time.Time `json:"buildDate"`
	GoVersion string    `json:"goVersion"`
	Platform  string    `json:"platform"`
	Modified  bool      `json:"modified"`
}

// Get merges the ldflags values with whatever the Go toolchain embedded
// in the binary. ldflags win where both are present.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if BuildDate != "" {
		if t, err := time.Parse(time.RFC3339, BuildDate); err == nil {
			info.BuildDate = t
		}
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildDate.IsZero() {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					info.BuildDate = t
				}
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}

	return info
}

// Short renders the one-line form used by `tabi version`: version plus
// an abbreviated commit when one is known.
func (i Info) Short() string {
	v := i.Version
	if i.Modified {
		v += "-dirty"
	}
	if i.Commit == "" {
		return v
	}

	c := i.Commit
	if len(c) > 7 {
		c = c[:7]
	}

	return fmt.Sprintf("%s (%s)", v, c)
}
