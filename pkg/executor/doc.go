// Package executor drives one agent turn: it replays a session's
// message history to a model provider, dispatches any requested tool
// invocations, and loops until the model stops asking for tools. It
// implements the coordinator's TurnExecutor contract and reports
// progress through the coordinator's callbacks.
package executor
