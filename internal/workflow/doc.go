// Package workflow runs stored workflow definitions.
//
// The Engine is the process-scoped entry point: it creates execution records,
// launches one coordinator per run, relays cancellation requests and waits
// for in-flight runs on shutdown. The worker pool and event broadcaster it
// uses are shared by every run in the process.
//
// A coordinator resolves the node graph into a discovery node plus an ordered
// pipeline, runs discovery once and then drives every discovered item through
// the pipeline one stage at a time. Each stage call happens on the worker pool
// against a copy of the item's context; the copy replaces the original only
// when the stage succeeds. A failing item is recorded and skipped, never
// aborting the run. Cancellation is observed between items, either through
// the in-process control flag or through the stored status, so a cancel
// issued by another process still stops the run at the next item boundary.
//
// Progress is persisted as snapshots (after discovery, after every item and
// at the end) and streamed as events to broadcaster observers.
package workflow
