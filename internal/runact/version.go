package runact

import "runtime"

// Version is set at build time via -ldflags.
var Version = "dev"

var GoVersion = runtime.Version()
