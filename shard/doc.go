// Package shard models a dataset that is already partitioned across workers
// and groups its shards by owning worker.
//
// Shards are never moved: an Assignment only records which worker owns which
// blocks so that fit and inference tasks can be sent to the data instead of
// the other way around.
package shard
