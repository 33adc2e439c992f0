// Package distance provides the float32 distance kernels used by the
// clustering engine and the inference passes.
//
// Accumulation happens in float64 so partial inertias computed on separate
// shards add up to the inertia of the unsplit data within rounding.
//
// # Usage
//
//	d2 := distance.SquaredL2(a, b)
//	idx, d2 := distance.Nearest(vec, centroids)
package distance
