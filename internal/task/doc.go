// Package task implements the pipeline orchestrator: dispatching long-running
// jobs to the external worker API, guarding against duplicate execution,
// consuming asynchronous callback updates, applying per-type result handlers,
// and scheduling decision polling with progressive backoff.
package task
