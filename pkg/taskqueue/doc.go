// Package taskqueue provides lane-based task scheduling. Each lane
// runs its tasks with a fixed concurrency (one, by default), so a
// lane keyed by session identifier gives per-session serialization.
// Tasks may be awaited or submitted fire-and-forget; fire-and-forget
// failures are logged rather than silently dropped.
package taskqueue
