package syncgroup

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type (
	Option func(options *groupOptions)

	groupOptions struct {
		throttling int
	}
)

// WithThrottling limits the number of active goroutines in the group.
func WithThrottling(limit int) Option {
	return func(options *groupOptions) {
		options.throttling = limit
	}
}

func New(ctx context.Context, opts ...Option) (*errgroup.Group, context.Context) {
	options := &groupOptions{}
	for _, opt := range opts {
		opt(options)
	}

	group, ctx := errgroup.WithContext(ctx)
	if options.throttling > 0 {
		group.SetLimit(options.throttling)
	}

	return group, ctx
}
