// Package bulkdump holds the release identity of the bulkdump tool.
package bulkdump

// Version is the current release.
const Version = "0.1.0"

// ModulePath is the Go module path.
const ModulePath = "github.com/mesh-intelligence/bulkdump"
