// Package util provides common utility functions and data structures
//
// This package includes a generic set and a hierarchical path index used to
// track nested flow instances
package util
