// Package buildinfo carries the version stamped in with -ldflags -X.
package buildinfo

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
	Go      = runtime.Version()
	OS      = runtime.GOOS
	Arch    = runtime.GOARCH
)

func Platform() string { return OS + "/" + Arch }

// String is the one-line form printed by `rollupd version`.
func String() string {
	commit := Commit
	if commit == "" {
		commit = "unknown"
	}
	date := Date
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("rollupd %s (commit %s, built %s) %s %s", Version, commit, date, Go, Platform())
}
