// Package graph decodes workflow definitions and resolves them into an
// ordered pipeline.
//
// A definition is a set of nodes and edges. Exactly one node is a discovery
// node; the resolver walks outgoing edges from it and returns the remaining
// nodes in traversal order. Malformed graphs are reported as *ConfigError,
// which matches services.ErrConfiguration under errors.Is.
package graph
