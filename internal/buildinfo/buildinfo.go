// Package buildinfo holds build-time metadata injected with -ldflags.
package buildinfo

import "fmt"

// Set at link time:
//
//	go build -ldflags "-X github.com/evalgrid/postit/internal/buildinfo.Version=v1.2.0"
var (
	Version   = ""
	BuildDate = ""
)

const unknown = "unknown"

// Info is the build metadata of the running binary.
type Info struct {
	Version   string
	BuildDate string
}

// Current returns the linked metadata with unknown for unset values.
func Current() Info {
	return Info{Version: orUnknown(Version), BuildDate: orUnknown(BuildDate)}
}

// Release returns the release name reported to error telemetry.
func (i Info) Release() string {
	return fmt.Sprintf("postit@%s", orUnknown(i.Version))
}

func (i Info) String() string {
	return fmt.Sprintf("postit %s (built %s)", orUnknown(i.Version), orUnknown(i.BuildDate))
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
