// Package comms manages communicator sessions: groups of workers enrolled in a
// collective-communication ring for the duration of one fit round.
//
// A Session is an explicit value with a caller-owned lifetime. It is created by
// Manager.Open and must be released by exactly one Manager.Close, on success and
// failure paths alike. Sessions never interpret the data exchanged over them;
// the per-worker engine uses its Communicator to synchronize centroid state.
//
// The Registry in this package is an in-process implementation: each worker's
// Communicator exchanges encoded frames with its peers over buffered channels
// using a naive all-to-all algorithm. Reductions combine contributions in rank
// order, so every rank observes bitwise identical results.
package comms
