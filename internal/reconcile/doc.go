// Package reconcile classifies extracted candidates as create-or-update
// against the records already in the destination store. The semantic
// "same outcome" judgment is delegated to an external comparator; this
// package owns the validation of the comparator's answer and never trusts
// it blindly.
package reconcile
