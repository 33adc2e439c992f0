// Package mmap maps shard block files read-only into memory.
//
//	m, err := mmap.Open("blocks/000003.blk")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessSequential)
//	frame := m.Bytes()
//
// Unix uses mmap(2) with madvise(2) hints. Windows uses
// CreateFileMapping/MapViewOfFile, and Advise is a no-op there.
//
// A Mapping is safe for concurrent reads. Close is idempotent; Bytes must not
// be touched after Close returns.
package mmap
