// Package lloyd is the reference distributed k-means engine.
//
// Every rank runs the same sequence of collectives: each Lloyd round assigns
// local rows, packs weighted sums, counts and inertia into one vector, and
// allreduces it. Since the communicator reduces in rank order, every rank
// derives bitwise identical centroids from the global sums.
//
// Initialization supports explicit centers, uniform random sampling, and
// k-means|| (scalable k-means++): a few oversampling rounds collect candidates
// from every rank, then each rank reduces the same weighted candidate set to
// ClusterCount centers with a shared seed.
package lloyd
