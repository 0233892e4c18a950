// Package version reports airlinebench build metadata.
//
// Release builds set the variables below with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/airlinebench/internal/version.Version=1.0.0 ..."
//
// Builds without ldflags (go install, go run) fall back to the module
// version and VCS stamps embedded by the Go toolchain.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	Dirty     = "false"
	BuildDate = "unknown"
)

// Info is the resolved build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Dirty     bool   `json:"dirty"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Get returns build metadata, preferring ldflags values over embedded ones.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Dirty:     Dirty == "true",
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = strings.TrimPrefix(bi.Main.Version, "v")
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			if Dirty == "false" && s.Value == "true" {
				info.Dirty = true
			}
		}
	}
	return info
}

func (i Info) short() string {
	if i.Dirty {
		return i.Version + "-dirty"
	}
	return i.Version
}

// String returns the version with a -dirty suffix for modified trees.
func String() string {
	return Get().short()
}

// Full returns the multi-line report printed by the version command.
func Full() string {
	i := Get()
	commit := i.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "airlinebench %s\n", i.short())
	fmt.Fprintf(&sb, "  Commit:     %s\n", commit)
	fmt.Fprintf(&sb, "  Built:      %s\n", i.BuildDate)
	fmt.Fprintf(&sb, "  Go version: %s\n", i.GoVersion)
	fmt.Fprintf(&sb, "  OS/Arch:    %s", i.Platform)
	return sb.String()
}
