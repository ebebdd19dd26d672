package balancer

import (
	"errors"
	"fmt"
)

// Sentinel errors for package balancer.
// These errors can be checked with errors.Is() for specific error handling.
var (
	// Configuration errors
	ErrInvalidWeights    = errors.New("invalid catalog weights")
	ErrInvalidThresholds = errors.New("invalid rebalance thresholds")

	// Lookup errors
	ErrNodeNotFound    = errors.New("namespace entry not found")
	ErrCatalogNotFound = errors.New("catalog not found")
	ErrNotDirectory    = errors.New("namespace entry is not a directory")
	ErrRootNode        = errors.New("operation not permitted on the namespace root")
)

// ValidateWeights rejects inconsistent optimal/maximum catalog weights
func ValidateWeights(optimalWeight, maxWeight int64) error {
	switch {
	case maxWeight <= 0:
		return fmt.Errorf("%w: max weight must be positive, got %d", ErrInvalidWeights, maxWeight)
	case optimalWeight <= 0:
		return fmt.Errorf("%w: optimal weight must be positive, got %d", ErrInvalidWeights, optimalWeight)
	case optimalWeight > maxWeight:
		return fmt.Errorf("%w: optimal weight %d exceeds max weight %d", ErrInvalidWeights, optimalWeight, maxWeight)
	}
	return nil
}

// ValidateThresholds rejects underflow/overflow bounds that would make every
// catalog both too small and too large
func ValidateThresholds(underflow, overflow int64) error {
	if underflow < 0 {
		return fmt.Errorf("%w: underflow threshold must not be negative, got %d", ErrInvalidThresholds, underflow)
	}
	if underflow >= overflow {
		return fmt.Errorf("%w: underflow %d must be below overflow %d", ErrInvalidThresholds, underflow, overflow)
	}
	return nil
}
