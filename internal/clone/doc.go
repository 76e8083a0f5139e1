// Package clone mirrors one guild's roles, channels and recent messages onto
// another.
//
// Roles and channels are created one at a time with a fixed delay between
// requests. Message history is copied per text channel through webhooks; those
// per-channel jobs are the only concurrent part and run through
// bounded.Run. Each job catches, logs and counts its own failures, so a bad
// channel never stops the others.
//
// The source→target id tables live in an IDMap owned by one Replicator.
package clone
