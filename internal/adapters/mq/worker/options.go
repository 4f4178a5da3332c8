package worker

import (
	"github.com/okian/formguide/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithFailureHandler registers fn for jobs that did not produce a race.
func WithFailureHandler(fn FailureFunc) Option {
	return func(w *InMemoryWorker) {
		w.onFail = fn
	}
}

func withCounters(c *counters) Option {
	return func(w *InMemoryWorker) {
		w.stats = c
	}
}
