// Package capture runs the three-step dialogue that records one blood
// pressure measurement.
//
// # Stages
//
//	AwaitingSystolic -> AwaitingDiastolic -> AwaitingPulse -> Completed
//
// Any stage can be cancelled, which ends the session without writing. A
// rejected value keeps the session in its current stage; there is no retry
// limit. The final valid pulse value triggers a single store append with
// all three values. If the append fails the session still ends and the
// *store.StorageError is returned to the caller.
//
// # Sessions
//
// Sessions live in a Table keyed by user id, owned by the Machine. A user
// has at most one session; Start while one is active discards it and
// reports Restarted. Sessions idle longer than the configured TTL are
// swept by a background goroutine.
package capture
