// Package engine implements the flow execution engine
//
// A flow instance is driven by a serialized dispatcher that decides which
// steps become eligible as events fire, while the steps themselves run
// concurrently through three middleware pipelines: one wrapping the whole
// flow, one wrapping each step group, and one wrapping each attempt
package engine
