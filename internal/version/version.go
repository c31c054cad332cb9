// Package version carries the release string shared by the firmware's
// GET_FIRMWARE_VERSION reply and the command-line tools.
package version

// Version is overridable at link time:
//
//	go build -ldflags "-X github.com/tetherlab/tether/internal/version.Version=1.2.0-dev"
var Version = "1.1.0"
