// Package kmeans holds the local kernels of the distributed Lloyd engine:
// nearest-centroid assignment, weighted accumulation, centroid update, and
// weighted k-means++ seeding over a candidate set.
//
// Nothing here communicates. The engine combines local results through a
// communicator and feeds the global sums back into Update.
package kmeans
