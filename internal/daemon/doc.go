// Package daemon coordinates the long-running mediaflow process.
//
// It ties the workflow engine, the cron scheduler, the optional Kafka event
// forwarder and the HTTP API into a single lifecycle with flock-based locking
// to prevent multiple instances sharing one log directory. The HTTP API
// (chi) exposes workflow and execution management, a Server-Sent Events
// stream of execution events, the in-memory log stream and Prometheus
// metrics.
//
// Keep orchestration logic here: stage handlers and the execution coordinator
// live in their own packages while the daemon focuses on startup, shutdown
// and request routing.
package daemon
