// Package sequin identifies the flow execution engine application
package sequin

// Name is the service name reported in logs and health responses
const Name = "sequin"

// Version is set at build time via ldflags
var Version = "dev"
