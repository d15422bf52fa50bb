// Package buildinfo exposes version metadata set at link time:
//
//	go build -ldflags "-X github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/buildinfo.Version=v1.2.3"
package buildinfo

import "runtime/debug"

const Name = "mcp-graphstore-postgres-go"

var (
	Version   = "dev"
	Revision  = ""
	BuildDate = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Revision == "" {
				Revision = s.Value
			}
		case "vcs.time":
			if BuildDate == "" {
				BuildDate = s.Value
			}
		}
	}
}
