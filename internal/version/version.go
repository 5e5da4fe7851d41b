// Package version provides build version information for the application.
// It sits below the api client and the CLI so both can import it.
package version

import "github.com/rescale/webup/internal/constants"

// Version is the build version string, set by ldflags during build.
// Format: vX.Y.Z or vX.Y.Z-dev for development builds.
var Version = "v0.1.0-dev"

// BuildTime is the build timestamp, set by ldflags during build.
var BuildTime = "unknown"

// UserAgent identifies the client to the uploader, e.g. "webup/v0.1.0".
func UserAgent() string {
	return constants.AppName + "/" + Version
}
