// Package server implements the HTTP Run API
//
// It exposes the flows a provider stores, starts runs, delivers external
// events, stops runs, resumes breakpoints, and streams monitor events over
// WebSocket connections
package server
