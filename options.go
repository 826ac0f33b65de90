package javaobs

import "go.uber.org/zap"

// Option configures a Decoder or Encoder session.
type Option func(*options)

type options struct {
	registry *Registry
	logger   *zap.Logger
}

// WithRegistry selects the type-binding registry of the session. The
// default is DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithLogger sets the session's logger. The default is the package
// Logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = DefaultRegistry
	}
	if o.logger == nil {
		o.logger = Logger()
	}
	return o
}
