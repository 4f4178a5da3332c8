package csvio

import (
	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/pkg/logger"
)

type options struct {
	policy      model.Policy
	logger      logger.Logger
	fillMissing bool
}

func newOptions(opts []Option) options {
	o := options{policy: model.PolicySkip, logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures readers and writers.
type Option func(*options)

// WithPolicy sets how malformed rows are handled. The default is skip.
func WithPolicy(p model.Policy) Option {
	return func(o *options) {
		if p != "" {
			o.policy = p
		}
	}
}

// WithLogger sets the logger that reports skipped rows.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFillMissing writes absent statistics as 0 instead of an empty cell.
func WithFillMissing(fill bool) Option {
	return func(o *options) {
		o.fillMissing = fill
	}
}
