package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
	"github.com/matescarabino/gatheringTracker-server/internal/imaging"
	"github.com/matescarabino/gatheringTracker-server/internal/observability/metrics"
)

// PhotoOptimizer re-runs photo normalization over already-stored gatherings.
// Photos written before normalization existed (or stored as received after a
// failed decode) are shrunk in place; anything that cannot be decoded or does
// not get smaller is left untouched, so repeated passes are harmless.
type PhotoOptimizer struct {
	gatherings domain.GatheringRepository
	opts       imaging.Options
	// minBytes skips photos already below the size worth re-encoding.
	minBytes int
	logger   *slog.Logger
}

// NewPhotoOptimizer creates a new photo optimizer.
func NewPhotoOptimizer(gatherings domain.GatheringRepository, opts imaging.Options, minBytes int, logger *slog.Logger) *PhotoOptimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotoOptimizer{
		gatherings: gatherings,
		opts:       opts,
		minBytes:   minBytes,
		logger:     logger,
	}
}

// Result summarizes one optimization pass.
type Result struct {
	Scanned   int
	Optimized int
	Skipped   int
	Failed    int
}

// Run executes a single pass over every stored photo at or above the size
// threshold.
func (o *PhotoOptimizer) Run(ctx context.Context) (Result, error) {
	var res Result

	gatherings, err := o.gatherings.ListWithPhotos(ctx, o.minBytes)
	if err != nil {
		return res, err
	}
	res.Scanned = len(gatherings)

	for _, g := range gatherings {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		o.optimizeOne(ctx, g, &res)
	}

	o.logger.Info("photo optimization pass finished",
		slog.Int("scanned", res.Scanned),
		slog.Int("optimized", res.Optimized),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

func (o *PhotoOptimizer) optimizeOne(ctx context.Context, g *domain.Gathering, res *Result) {
	logger := o.logger.With(slog.Int64("gathering_id", g.ID))

	if !imaging.IsInline(g.Photo) {
		res.Skipped++
		return
	}

	start := time.Now()
	normalized, err := imaging.NormalizeBase64(g.Photo, o.opts)
	if err != nil {
		metrics.ObservePhotoNormalization("error", time.Since(start))
		logger.Warn("photo could not be normalized", slog.String("error", err.Error()))
		res.Failed++
		return
	}
	metrics.ObservePhotoNormalization("success", time.Since(start))

	if len(normalized) >= len(g.Photo) {
		res.Skipped++
		return
	}

	if err := o.gatherings.UpdatePhoto(ctx, g.ID, normalized); err != nil {
		logger.Error("failed to store normalized photo", slog.String("error", err.Error()))
		res.Failed++
		return
	}

	logger.Info("photo optimized",
		slog.Int("before_bytes", len(g.Photo)),
		slog.Int("after_bytes", len(normalized)),
	)
	res.Optimized++
}
