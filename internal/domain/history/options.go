package history

type options struct {
	entities int
}

// Option applies a configuration option to an Index.
type Option func(*options)

// WithCapacityHint pre-sizes the index for roughly n entities.
func WithCapacityHint(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.entities = n
		}
	}
}
