package clog

// Options holds configuration options for a clog logger instance.
type Options struct {
	// Namespace is the root namespace, typically the service name.
	Namespace string
}

// Option configures Options.
type Option func(*Options)

// WithNamespace sets the root namespace for the logger.
//
//	logger, err := clog.New(ctx, config, clog.WithNamespace("sctid-server"))
func WithNamespace(namespace string) Option {
	return func(opts *Options) {
		opts.Namespace = namespace
	}
}

// ParseOptions applies opts over the defaults.
func ParseOptions(opts ...Option) *Options {
	result := &Options{}
	for _, opt := range opts {
		opt(result)
	}
	return result
}
