// Package services defines shared utilities consumed by the workflow engine,
// the stage handlers and their external tool adapters.
//
// Key responsibilities:
//   - Context helpers that stamp execution IDs, item indexes, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so stage failures can be
//     classified (configuration vs external tool vs transient) without string
//     matching.
//
// Use these helpers when wiring new stage logic so operational behaviour stays
// uniform across the pipeline.
package services
