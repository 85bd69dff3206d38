// Package gateway broadcasts session lifecycle events to connected
// websocket clients. It is a process-wide notification bus: every
// client sees every session's lifecycle, unlike the per-session SSE
// stream which carries one session's conversation events to a single
// consumer.
package gateway
