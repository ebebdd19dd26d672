package balancer

import (
	internal "github.com/ZanzyTHEbar/catalog-balancer/catbal"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"

	"github.com/rs/zerolog"
)

type settings struct {
	logger     zerolog.Logger
	metrics    *trees.MetricsCollector
	markerName string
}

// Option customizes a partitioner
type Option func(*settings)

// WithLogger sets a custom logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics shares a metrics collector between components
func WithMetrics(metrics *trees.MetricsCollector) Option {
	return func(s *settings) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithMarkerName overrides the catalog marker file name
func WithMarkerName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.markerName = name
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:     zerolog.Nop(),
		metrics:    trees.NewMetricsCollector(),
		markerName: internal.DefaultMarkerName,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
