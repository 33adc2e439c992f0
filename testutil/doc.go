// Package testutil provides testing utilities for mgkmeans.
//
// This package is intended for use in tests only.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	x := rng.GaussianMatrix(1000, 8)
//	workers := testutil.Workers(4) // w0 … w3
package testutil
