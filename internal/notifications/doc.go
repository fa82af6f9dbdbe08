// Package notifications delivers workflow outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the workflow engine can publish unconditionally. Individual events can be
// muted through the [notifications] toggles in config.toml.
package notifications
