// Package proposal defines the task-proposal data model shared across the
// reconciliation, queueing, and review components: candidate tasks extracted
// from a transcript, existing records fetched from the task database, and the
// reconciled Proposal that a human approves one at a time.
package proposal
