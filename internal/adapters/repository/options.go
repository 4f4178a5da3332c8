package repository

import "github.com/okian/formguide/pkg/logger"

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBatchSize sets how many rows are written per transaction.
func WithBatchSize(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithMaxOpenConns caps the connection pool. sqlite is always capped at one.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}
