package enrich

import (
	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/pkg/logger"
)

// Option applies a configuration option to the Driver.
type Option func(*Driver)

// WithLogger sets the logger used for skipped records and pass summaries.
func WithLogger(l logger.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithPolicy sets how malformed records are handled. The default is skip.
func WithPolicy(p model.Policy) Option {
	return func(d *Driver) {
		if p != "" {
			d.policy = p
		}
	}
}

// WithProgress calls fn after every n enriched records, and once at the end.
func WithProgress(n int, fn ProgressFunc) Option {
	return func(d *Driver) {
		if n > 0 && fn != nil {
			d.progressEvery = n
			d.progress = fn
		}
	}
}

// WithCapacityHint pre-sizes the history indexes for the expected number of entities.
func WithCapacityHint(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.capacityHint = n
		}
	}
}
