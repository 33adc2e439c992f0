package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/mgkmeans/model"
)

// Init selects how initial centroids are chosen.
type Init uint8

const (
	// InitScalableKMeansPP is k-means|| seeding.
	InitScalableKMeansPP Init = iota
	// InitRandom samples ClusterCount rows uniformly.
	InitRandom
	// InitExplicit uses Params.Centers.
	InitExplicit
)

func (i Init) String() string {
	switch i {
	case InitScalableKMeansPP:
		return "scalable-k-means++"
	case InitRandom:
		return "random"
	case InitExplicit:
		return "explicit"
	default:
		return fmt.Sprintf("Unknown(%d)", i)
	}
}

// ParseInit parses the names returned by Init.String. "k-means||" is accepted
// as an alias of scalable k-means++.
func ParseInit(s string) (Init, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scalable-k-means++", "k-means||", "kmeans||":
		return InitScalableKMeansPP, nil
	case "random":
		return InitRandom, nil
	case "explicit", "array":
		return InitExplicit, nil
	default:
		return 0, fmt.Errorf("%w: unknown init %q", ErrInvalidParams, s)
	}
}

// Params configures a fit. The same Params reach every worker.
type Params struct {
	// ClusterCount is the number of centroids.
	ClusterCount int
	// MaxIterations bounds the Lloyd rounds.
	MaxIterations int
	// Tolerance stops iterating once no centroid coordinate moves more than it.
	Tolerance float64
	Init      Init
	// Centers are the initial centroids for InitExplicit.
	Centers model.Matrix
	// OversamplingFactor is the expected number of candidates drawn per round
	// of k-means||, as a multiple of ClusterCount.
	OversamplingFactor float64
	// MaxBatchRows bounds how many rows are assigned between cancellation checks.
	MaxBatchRows int
	// RandomSeed makes initialization reproducible.
	RandomSeed int64
	// Verbose enables per-round debug logging.
	Verbose bool
}

// DefaultParams returns the default configuration.
func DefaultParams() Params {
	return Params{
		ClusterCount:       8,
		MaxIterations:      300,
		Tolerance:          1e-4,
		Init:               InitScalableKMeansPP,
		OversamplingFactor: 2,
		MaxBatchRows:       1 << 15,
		RandomSeed:         1,
	}
}

// Validate reports every invalid field at once.
func (p Params) Validate() error {
	var errs []error
	if p.ClusterCount < 1 {
		errs = append(errs, fmt.Errorf("ClusterCount must be >= 1, got %d", p.ClusterCount))
	}
	if p.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("MaxIterations must be >= 1, got %d", p.MaxIterations))
	}
	if p.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("Tolerance must be >= 0, got %g", p.Tolerance))
	}
	if p.MaxBatchRows < 1 {
		errs = append(errs, fmt.Errorf("MaxBatchRows must be >= 1, got %d", p.MaxBatchRows))
	}
	switch p.Init {
	case InitScalableKMeansPP:
		if p.OversamplingFactor <= 0 {
			errs = append(errs, fmt.Errorf("OversamplingFactor must be > 0, got %g", p.OversamplingFactor))
		}
	case InitRandom:
	case InitExplicit:
		if err := p.Centers.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("Centers: %w", err))
		} else if p.Centers.Rows != p.ClusterCount {
			errs = append(errs, fmt.Errorf("Centers has %d rows, ClusterCount is %d", p.Centers.Rows, p.ClusterCount))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown Init %v", p.Init))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidParams, errors.Join(errs...))
}

// Names lists the tunable parameter names, in declaration order.
func (Params) Names() []string {
	return []string{
		"cluster_count",
		"max_iterations",
		"tolerance",
		"init",
		"centers",
		"oversampling_factor",
		"max_batch_rows",
		"random_seed",
		"verbose",
	}
}
