// Package api defines the data model shared by the flow engine, its
// providers, and its HTTP surface
//
// Flow and config definitions are immutable templates. Step status, attempt
// status, and flow results are the run-time records produced while a flow
// instance executes
package api
