// ABOUTME: Package console is the operator TCP console
// ABOUTME: Bcrypt-authenticated, loopback by default

// Package console provides a small line-oriented admin console over TCP.
// Operators authenticate with a password checked against a bcrypt hash from
// the config file, then get status, plugin listing, and manual command
// dispatch. The listener binds loopback unless configured otherwise.
package console
