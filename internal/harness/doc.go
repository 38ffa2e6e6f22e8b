// Package harness runs YAML scenarios against a fresh lifecycle facade.
//
// Every scenario executes on a manual clock starting at its start time,
// with sequential ids ("id-1", "id-2", ...) and an in-memory backend, so
// the same file always produces the same final state.
//
// # Scenario Format
//
//	name: battle_original_wins
//	description: "Original wins 3-1 and lives 48h past resolution"
//	start: 2025-07-10T12:00:00Z
//	config:
//	  one_vote_per_user: true
//	steps:
//	  - as: alice
//	    do: create_post
//	    args: { text: "hello" }
//	    save_as: original
//	  - as: bob
//	    do: start_battle
//	    args: { original: $original, text: "mine" }
//	    save_as: duel
//	  - advance: 25h
//	    do: tick
//	assertions:
//	  - type: battle_winner
//	    battle: $duel
//	    winner: $original
//	  - type: post_absent
//	    post: $duel.challenge
//
// A step may advance the clock, perform an action, or both; the clock
// moves first. Argument and assertion values starting with "$" refer to
// ids captured by an earlier save_as. start_battle also captures the
// challenger as "<name>.challenge".
//
// # Actions
//
//   - create_post: text | voice+duration | music+duration+caption | image, theme
//   - delete_post: post
//   - react: post, reaction (like|dislike)
//   - start_battle: original plus the create_post payload args
//   - vote: battle, side (original|challenge)
//   - save: post
//   - purchase
//   - delete_saved: saved
//   - tick
//   - monthly_reset
//
// expect_error names the domain error code the action must fail with.
//
// # Assertion Types
//
//   - post_exists: post is live, optionally with expires_at
//   - post_absent: post is gone
//   - battle_winner: battle is resolved with the given winner
//   - battle_absent: battle is no longer retained
//   - usage: user's used, max and credits for the current month
//   - event_count: number of events of one kind
//
// # Golden Files
//
// RunWithGolden renders the final state as text and compares it with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
