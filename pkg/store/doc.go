// Package store provides the durable session and message log backed
// by SQLite. Sessions hold per-conversation model configuration;
// messages are an append-only log keyed by session, totally ordered
// by creation time. The store never deletes sessions on its own.
package store
