// SPDX-License-Identifier: MIT
//
// Package build exposes the build metadata embedded at link time:
//
//	go build -ldflags "-X dspctl/pkg/build.buildVersion=v0.3.0 -X dspctl/pkg/build.buildCommit=$(git rev-parse --short HEAD)"
//
// Development builds carry no flags and report "dev" values.
package build

import (
	"errors"
	"fmt"
)

// Description is the one line summary shown by the CLI.
const Description = "Keeps a DSP engine in sync with its preferences"

// Info is the build metadata of the running binary.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String formats the info for the version command.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = Info{
		Name:    "dspctl",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// Initialize copies the ldflags variables into the build info. Every flag
// that was not set keeps its development default and is reported in the
// returned error; callers may treat that as a warning.
func Initialize() error {
	var errs []error
	set := func(dst *string, v, flag string) {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is not set", flag))
			return
		}
		*dst = v
	}
	set(&buildInfo.Name, buildName, "BuildName")
	set(&buildInfo.Time, buildTime, "BuildTime")
	set(&buildInfo.Commit, buildCommit, "BuildCommit")
	set(&buildInfo.Version, buildVersion, "BuildVersion")
	return errors.Join(errs...)
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() Info {
	return buildInfo
}
