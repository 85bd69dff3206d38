// Package httpapi exposes the session REST surface and the per-session
// SSE event stream. Handlers are thin: they validate, call into the
// store and registry, and schedule turns on the task queue. The SSE
// handler is the single long-lived consumer of a session's event queue.
package httpapi
