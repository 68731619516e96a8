// Package store provides arcbot's persistence layer.
//
// The store is deliberately narrow: plugin-scoped key/value records and
// per-shard event counters. Plugins reach it through the bot facade and the
// core never builds queries of its own on top of it.
package store
