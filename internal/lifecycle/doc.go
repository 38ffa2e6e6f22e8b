// Package lifecycle is the only entry point outer layers use.
//
// Facade wraps the content store, the expiration engine and the rewind
// ledger behind domain commands. Every call, read or write, runs under one
// facade mutex in the same order:
//
//	reconcile at now -> command -> persist changed documents -> notify
//
// so a scheduler tick can never interleave with a vote or a save, and no
// caller ever observes expired content as live.
//
// Persistence is snapshot-on-write: a document is written only when some
// call changed it. A failed write leaves the document dirty and its events
// queued; the next call retries, and events go out only once their state
// is stored. Reads log a persist failure instead of returning it.
// Notification failures are logged and never fail the call.
package lifecycle
