// Package dedupe provides a replay guard for gateway events, preventing
// double dispatch of events redelivered after a session resume.
package dedupe
