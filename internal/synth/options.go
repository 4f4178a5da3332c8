package synth

import "github.com/okian/formguide/pkg/logger"

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}
