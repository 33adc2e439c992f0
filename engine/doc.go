// Package engine defines the per-worker clustering engine the orchestrator
// drives, and the parameters it is configured with.
//
// An Engine fits a model on one worker's local rows. During Fit it talks to its
// peers only through the comms.Communicator in FitInput, so every rank ends up
// with the same centroids. Predict, Transform and Score are purely local.
//
// Package lloyd provides the reference implementation.
package engine
