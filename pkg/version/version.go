// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

// Set at link time, e.g.
// -ldflags "-X github.com/Sumatoshi-tech/wasmprov/pkg/version.Version=v1.2.0".
var (
	Version = "dev"
	Commit  = "<unknown>"
	Date    = "<unknown>"
)

// String renders the metadata on one line.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
