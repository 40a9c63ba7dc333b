// Package review drives the interactive approval loop: one proposal at a
// time, accept / skip / feedback, forward progress strictly gated on human
// action. Accept and skip acknowledge synchronously and hand the commit and
// the next card render to a bounded worker pool with its own error path.
package review
