// Package main hosts the mediaflow CLI entrypoint and command graph.
//
// The Cobra command tree covers running the daemon (`serve`) and one-shot
// in-process runs of definition files (`run`). It also manages stored
// workflows and execution history directly against the SQLite store, reports
// dependency status, and scaffolds configuration. Configuration resolution
// and runtime wiring live in commandContext so subcommands stay declarative.
package main
