// ABOUTME: Package webhook accepts external HTTP calls as synthetic events
// ABOUTME: Callers authenticate with HS256 bearer tokens

// Package webhook lets external systems inject events into the bot. A POST
// to /events with a valid bearer token enqueues a synthetic event through
// the same worker pipeline as gateway traffic, with the same backpressure.
package webhook
