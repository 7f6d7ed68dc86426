// Package engine implements optimistic synchronization between the
// canonical local store and the remote backing store.
//
// Edits apply to local state synchronously and render immediately; the
// matching network call is dispatched afterwards and its completion is
// processed by a single-writer Run loop. The loop owns everything that
// must not race: binding ephemeral identifiers to durable ones, drift
// reconciliation for edits made while an identity was still pending, and
// the id swap in the local store.
//
// Thread-safety model:
//   - mutating engine methods: must be called from one goroutine (the
//     editing context)
//   - Run: must be called from exactly one goroutine
//   - network calls run in their own goroutines and communicate with Run
//     only through the completion queue
//
// Writes are never retried automatically (duplicate side effects); reads
// go through the retry policy. A failed write after the optimistic local
// apply is logged and does NOT roll back local state: the UI keeps
// reflecting the user's intent and the next mutation or refresh
// reconciles. That trade favors perceived responsiveness over strict
// consistency, deliberately.
package engine
