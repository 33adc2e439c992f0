// Package dispatch fans one fit task out to every worker of an assignment and
// fans the results back in.
//
// All tasks are submitted before any is awaited, since each one blocks in
// collectives until its peers arrive. The first failure cancels the round
// context with ErrRoundAborted so peers waiting on a collective give up
// instead of hanging until the barrier deadline. Every failure is reported in
// one DistributedFitError; a partially failed round never yields results.
//
// The dispatcher only borrows the session. Opening and closing it is the
// caller's job.
package dispatch
