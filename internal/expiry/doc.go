// Package expiry implements the Expiration Engine: the sole authority for
// time-driven state transitions.
//
// Reconcile is a pure function of (state, now, policy). It never returns an
// error and never mutates its input; callers swap in the returned state and
// persist it only when Report.Changed is true.
//
// Algorithm, evaluated against a single instant now:
//
//  1. Every active battle with ExpiresAt <= now is resolved. The original
//     post wins only with strictly more votes; ties go to the challenger.
//  2. The winner of each battle resolved in step 1 has its ExpiresAt raised
//     to now + WinnerExtension. Extensions never shorten a lifetime.
//  3. Every post with ExpiresAt <= now that was not just extended is removed.
//     Removal is a hard delete.
//  4. A battle is retained while active, or while resolved and
//     ExpiresAt + WinnerExtension > now. Otherwise it is dropped.
//
// A winner id that no longer resolves to a post (deleted or already expired)
// is logged and recorded in Report.MissingWinners; there is nothing to extend.
//
// Running Reconcile twice at the same instant is a no-op the second time.
package expiry
