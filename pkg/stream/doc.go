// Package stream provides the per-session event queue that bridges
// turn execution into a live consumer feed.
//
// A Queue is an unbounded FIFO of typed events with exactly one
// intended long-lived consumer. Producers never block; the consumer
// blocks on Next until an event arrives or its context is cancelled.
// Events are ephemeral: nothing is persisted and an event produced
// with no consumer attached is delivered only if a consumer attaches
// before draining past it.
package stream
