// ABOUTME: Package gateway maintains the websocket sessions to the chat platform
// ABOUTME: One Manager per shard handles handshake, heartbeats, and resume

// Package gateway implements the persistent event connection to the chat
// platform.
//
// Each shard gets its own Manager, which owns a single websocket session at
// a time and drives the full lifecycle: hello handshake, identify or resume,
// heartbeating, and the dispatch read loop. Sessions that drop are retried
// with capped exponential backoff; a bounded budget of consecutive failures
// escalates to a fatal error rather than retrying forever.
//
// Dispatch events are wrapped as work items and submitted to a worker pool.
// The manager never processes events inline, and heartbeat timing is
// isolated from submission backpressure so a saturated pool cannot cause
// the server to drop the connection for a missed heartbeat.
//
// After a resume the server replays events the bot may have already seen;
// a small replay guard keyed on session and sequence suppresses these.
package gateway
