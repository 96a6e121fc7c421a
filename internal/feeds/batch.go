package feeds

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// BatchOptions tune the multi-address fetch helper.
type BatchOptions struct {
	// BatchSize is how many addresses are fetched concurrently per batch.
	BatchSize int
	// Rate limits how often a new batch may start, honouring upstream
	// quotas across the whole refresh pass.
	Rate rate.Limit
}

// Batcher serialises multi-address fetches into paced batches. Upstream
// quota policies apply per the whole process, so a single limiter is
// shared by every pass.
type Batcher struct {
	opts    BatchOptions
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewBatcher constructs a batch pacer.
func NewBatcher(opts BatchOptions, logger zerolog.Logger) *Batcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	if opts.Rate <= 0 {
		opts.Rate = 1 // one batch per second
	}
	return &Batcher{
		opts:    opts,
		limiter: rate.NewLimiter(opts.Rate, 1),
		logger:  logger.With().Str("component", "batcher").Logger(),
	}
}

// Run invokes fn for every address, batch by batch, waiting out the
// limiter between batches. Per-address failures are reported to fn's
// caller through the errs map rather than aborting the pass.
func (b *Batcher) Run(ctx context.Context, addresses []string, fn func(ctx context.Context, address string) error) map[string]error {
	errs := make(map[string]error)
	for start := 0; start < len(addresses); start += b.opts.BatchSize {
		if err := b.limiter.Wait(ctx); err != nil {
			for _, addr := range addresses[start:] {
				errs[addr] = err
			}
			return errs
		}

		end := start + b.opts.BatchSize
		if end > len(addresses) {
			end = len(addresses)
		}
		for _, addr := range addresses[start:end] {
			if err := fn(ctx, addr); err != nil {
				errs[addr] = err
				b.logger.Warn().Err(err).Str("address", addr).Msg("batch item failed")
			}
		}
	}
	return errs
}
