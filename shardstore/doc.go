// Package shardstore persists sharded datasets in blob storage.
//
// A saved dataset is a directory-like prefix holding one encoded matrix block
// per shard and a JSON manifest recording the layout and the placement of
// every block:
//
//	prefix/manifest.json
//	prefix/block-000000.bin
//	prefix/block-000001.bin
//	...
//
// Blocks are written before the manifest, so a prefix without a manifest is
// an incomplete save and Load refuses it.
//
// # Built-in Stores
//
//   - MemoryStore: in-memory, for tests
//   - LocalStore: local filesystem, reads through mmap
//   - minio.Store: MinIO and other S3-compatible services
//   - s3.Store: Amazon S3
//
// # Usage
//
//	store := shardstore.NewLocalStore("/data/blobs")
//	if err := shardstore.Save(ctx, store, "run-42", data, codec.CompressionZSTD); err != nil { ... }
//
//	data, err := shardstore.Load(ctx, store, "run-42", func(o *shardstore.LoadOptions) {
//	    o.Concurrency = 8
//	})
package shardstore
