// Package buildinfo carries version metadata stamped in at link time:
//
//	go build -ldflags "-X siteplan/internal/buildinfo.Version=v1.2.0 -X siteplan/internal/buildinfo.Commit=$(git rev-parse HEAD)"
package buildinfo

import "runtime"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"commit":    Commit,
		"builtAt":   BuiltAt,
		"goVersion": runtime.Version(),
	}
}
