// Package model defines the records shared by the lifecycle engine:
// posts ("ghosts"), battles, rewind saves, user context, domain errors
// and the events emitted on state transitions.
//
// # Ownership
//
// Types here are plain data. Invariant-preserving mutation lives in the
// owning component:
//   - Post and Battle records are mutated only by internal/content and
//     internal/expiry.
//   - SavedPost records and quota counters are mutated only by
//     internal/rewind.
//
// # Derived fields
//
// Flags that can be computed from canonical fields are never stored:
// InBattle is derived from BattleID, vote percentages from vote counts,
// and a caller's liked/disliked state from the per-user reaction map.
package model
