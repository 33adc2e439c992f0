package mgkmeans

import "github.com/hupe1980/mgkmeans/engine"

// Params configures a fit. See engine.Params.
type Params = engine.Params

// Init selects the centroid initialization strategy.
type Init = engine.Init

const (
	InitScalableKMeansPP = engine.InitScalableKMeansPP
	InitRandom           = engine.InitRandom
	InitExplicit         = engine.InitExplicit
)

// DefaultParams returns 8 clusters, 300 iterations, tolerance 1e-4, k-means||
// seeding with oversampling 2, batches of 32768 rows and seed 1.
func DefaultParams() Params { return engine.DefaultParams() }

// ParseInit parses an initialization name such as "random" or "k-means||".
func ParseInit(s string) (Init, error) { return engine.ParseInit(s) }
