// Package queue owns the per-session ordered list of reconciled proposals,
// the cursor into that list, and the process-wide registry mapping session
// ids to queues. All queue mutation for one session is serialized behind a
// per-session lock; unrelated sessions never contend.
package queue
