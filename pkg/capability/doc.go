// Package capability defines the pluggable business logic invoked by the
// engine: step implementations, converters, and option providers, each
// resolved from a registry by category and name
package capability
