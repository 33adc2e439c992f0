// Package model defines core types shared by every mgkmeans package.
//
// # Identity Types
//
//   - WorkerID: identity of a compute worker in the pool
//
// # Data Types
//
//   - Matrix: dense row-major float32 block (rows × cols)
//   - Layout: the container type callers expect back (array or tabular)
package model
