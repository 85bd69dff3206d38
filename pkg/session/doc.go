// Package session implements the per-session coordinator at the heart
// of the backend: it owns a session's in-memory message history, its
// live event queue, and the turn lock that serializes agent turns.
//
// A Coordinator bridges three worlds. Inbound user messages are
// appended to the history, written to the durable store, and pushed
// to the event queue. One agent turn at a time is executed through an
// injected TurnExecutor whose callbacks are translated into queued
// events and persisted rows. A transport-side consumer drains the
// event queue for as long as the client stays connected.
//
// The Registry maps session identifiers to live coordinators for the
// current process lifetime only; durable session rows outlive it.
package session
