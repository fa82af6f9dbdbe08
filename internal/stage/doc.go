// Package stage defines the capability interfaces stage handlers implement,
// the per-item context they exchange, and the registry the workflow
// coordinator dispatches through.
//
// A stage type tag ("scan", "download", ...) maps to exactly one handler.
// Adding a stage type means registering a handler; the coordinator is not
// modified. Handlers may publish a JSON schema for their node configuration,
// which the registry enforces before an execution starts.
package stage
