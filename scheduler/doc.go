// Package scheduler runs tasks on named workers.
//
// Scheduler is the interface the dispatcher and the inference runner submit
// work through. Pool is an in-process implementation: every worker is a set of
// execution slots, tasks bound to a worker only run in that worker's slots,
// and a worker can be taken down and brought back to simulate node loss.
//
// Submit never blocks on execution. Callers fan out every task first and then
// wait on the returned futures, typically with WaitAll.
package scheduler
