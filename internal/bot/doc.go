// Package bot defines the immutable bot facade.
//
// The facade is the one handle every plugin and the command router share:
// identity name, trigger, shard assignment, per-plugin configuration, and
// the persistence and reply collaborators. It is read-only after startup,
// so it can be passed freely across goroutines without locking.
package bot
