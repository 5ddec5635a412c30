// Package pipeline drives a batch of clips through scan, fuse, reason
// and persist, in that order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/fusion"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/internal/persist"
	"github.com/your-org/homewatch/internal/reason"
	"github.com/your-org/homewatch/internal/vision"
)

// Pipeline owns the stages shared across batches. Scanners are not
// shared: each worker builds its own because ONNX sessions are
// single-threaded.
type Pipeline struct {
	cfg       config.Config
	resolver  vision.IdentityResolver
	reasoner  *reason.Reasoner
	persister *persist.Persister
}

func New(cfg config.Config, resolver vision.IdentityResolver, reasoner *reason.Reasoner, persister *persist.Persister) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		resolver:  resolver,
		reasoner:  reasoner,
		persister: persister,
	}
}

// Run processes one batch end to end and returns the stored events in
// chronological order. Scanning is parallel; fusion and persistence
// are sequential because event ordering matters.
func (p *Pipeline) Run(ctx context.Context, clips []models.Clip) ([]*models.StoredEvent, error) {
	if len(clips) == 0 {
		return nil, nil
	}

	results, err := p.scanAll(ctx, clips)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	fuser := fusion.NewFuser(fusion.NewPolicy(p.cfg.Fusion))
	events := fuser.Fuse(results)
	for _, ev := range events {
		fusion.Refine(ev)
	}
	observability.StageDuration.WithLabelValues("fuse").Observe(time.Since(start).Seconds())
	slog.Info("fused clips into events", "clips", len(results), "events", len(events), "elapsed", time.Since(start))

	stored := make([]*models.StoredEvent, 0, len(events))
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return stored, err
		}

		rstart := time.Now()
		if err := p.reasoner.Summarize(ctx, ev); err != nil {
			return stored, fmt.Errorf("summarize event at %s: %w", ev.StartTime.Format(time.RFC3339), err)
		}
		observability.StageDuration.WithLabelValues("reason").Observe(time.Since(rstart).Seconds())

		pstart := time.Now()
		rec, err := p.persister.PersistEvent(ctx, ev)
		if err != nil {
			return stored, fmt.Errorf("persist event at %s: %w", ev.StartTime.Format(time.RFC3339), err)
		}
		observability.StageDuration.WithLabelValues("persist").Observe(time.Since(pstart).Seconds())
		stored = append(stored, rec)
	}

	slog.Info("batch complete", "clips", len(clips), "events", len(stored))
	return stored, nil
}

// scanAll fans the clips out over a fixed worker pool. Result order
// does not matter here; the fuser sorts by start time.
func (p *Pipeline) scanAll(ctx context.Context, clips []models.Clip) ([]models.ClipResult, error) {
	workers := p.cfg.Vision.WorkerCount
	if workers > len(clips) {
		workers = len(clips)
	}

	start := time.Now()
	jobs := make(chan models.Clip)
	results := make([]models.ClipResult, 0, len(clips))
	collected := make(chan models.ClipResult, len(clips))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			scanner, err := vision.NewScanner(p.cfg.Vision, p.cfg.Tracking, p.resolver)
			if err != nil {
				return fmt.Errorf("init scanner: %w", err)
			}
			defer scanner.Close()

			for clip := range jobs {
				res, err := scanner.Scan(gctx, clip)
				if err != nil {
					slog.Warn("skip unscannable clip", "clip", clip.VideoPath, "error", err)
					continue
				}
				collected <- *res
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, clip := range clips {
			select {
			case jobs <- clip:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(collected)
	for res := range collected {
		results = append(results, res)
	}

	observability.StageDuration.WithLabelValues("scan").Observe(time.Since(start).Seconds())
	slog.Info("scanned clips", "total", len(clips), "ok", len(results), "workers", workers, "elapsed", time.Since(start))
	return results, nil
}
