// Package pipeline drives the per-sticker import pipeline: fetch from the
// source connector, classify and convert, publish to the content store. A
// fixed-size worker pool processes stickers concurrently while results land
// in a slot array indexed by source position, so manifest order always
// matches the pack's declared order no matter which worker finishes first.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mxpack/mxpack/internal/convert"
	"github.com/mxpack/mxpack/internal/format"
	"github.com/mxpack/mxpack/internal/manifest"
	"github.com/mxpack/mxpack/internal/metrics"
	"github.com/mxpack/mxpack/internal/publish"
)

// DefaultWorkers is the default concurrency limit. Small on purpose: the
// bottleneck is the source platform's and homeserver's rate limits, not CPU.
const DefaultWorkers = 4

// Source fetches raw sticker bytes by source asset reference.
type Source interface {
	Fetch(ctx context.Context, assetRef string) (data []byte, mimeHint string, err error)
}

// Asset is one unit of pipeline work: an opaque source locator plus the
// annotation that becomes the sticker body text.
type Asset struct {
	Ref        string
	Annotation string
}

// Status is a sticker's terminal processing state.
type Status int

const (
	// StatusPending is the zero value: the sticker has not reached a
	// terminal state yet. Run never returns pending outcomes; a slot whose
	// job was not fed before cancellation is marked failed.
	StatusPending Status = iota

	// StatusPublished means the sticker was converted and published.
	StatusPublished

	// StatusSkipped means the format is unsupported; recorded, not fatal.
	StatusSkipped

	// StatusFailed means fetch, conversion, or publishing failed.
	StatusFailed
)

// String returns the operator-facing name of the status.
func (s Status) String() string {
	switch s {
	case StatusPublished:
		return "published"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Outcome is the terminal result for one sticker, in source order.
type Outcome struct {
	Index   int
	Ref     string
	Status  Status
	Kind    format.Kind
	Sticker manifest.Sticker // valid only when Status == StatusPublished
	Err     error            // set for skipped and failed stickers
}

// Summary aggregates a pack run.
type Summary struct {
	RunID     string
	Total     int
	Published int
	Skipped   int
	Failed    int
	Outcomes  []Outcome
	Duration  time.Duration
}

// Stickers returns the successful descriptors in source order.
func (s *Summary) Stickers() []manifest.Sticker {
	out := make([]manifest.Sticker, 0, s.Published)
	for _, o := range s.Outcomes {
		if o.Status == StatusPublished {
			out = append(out, o.Sticker)
		}
	}
	return out
}

// FullyUsable reports whether every sticker made it into the manifest.
func (s *Summary) FullyUsable() bool {
	return s.Skipped == 0 && s.Failed == 0
}

// Importer coordinates the pipeline stages for one pack at a time.
type Importer struct {
	source    Source
	converter *convert.Converter
	publisher *publish.Publisher
	workers   int
	logger    *slog.Logger
}

// ImporterOption configures the Importer.
type ImporterOption func(*Importer)

// WithWorkers sets the concurrency limit.
func WithWorkers(n int) ImporterOption {
	return func(imp *Importer) {
		if n > 0 {
			imp.workers = n
		}
	}
}

// WithLogger sets the importer's logger.
func WithLogger(logger *slog.Logger) ImporterOption {
	return func(imp *Importer) { imp.logger = logger }
}

// NewImporter wires the pipeline stages together.
func NewImporter(source Source, converter *convert.Converter, publisher *publish.Publisher, opts ...ImporterOption) *Importer {
	imp := &Importer{
		source:    source,
		converter: converter,
		publisher: publisher,
		workers:   DefaultWorkers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Run processes every asset and returns the ordered outcomes. A single
// sticker's failure never aborts the batch; only context cancellation does,
// and already-published references stay valid for an idempotent re-run.
func (imp *Importer) Run(ctx context.Context, assets []Asset) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := imp.logger.With("run_id", runID)
	logger.Info("import started", "stickers", len(assets), "workers", imp.workers)

	outcomes := make([]Outcome, len(assets))
	jobs := make(chan int)

	workers := imp.workers
	if workers > len(assets) {
		workers = len(assets)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			wlog := logger.With("worker_id", id)
			for i := range jobs {
				outcomes[i] = imp.process(ctx, i, assets[i], wlog)
			}
		}(w)
	}

feed:
	for i := range assets {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	// A cancelled feed loop leaves unfed slots in the zero state; mark
	// them failed so the summary accounts for every asset.
	for i := range outcomes {
		if outcomes[i].Status == StatusPending {
			outcomes[i] = Outcome{Index: i, Ref: assets[i].Ref, Status: StatusFailed, Err: ctx.Err()}
		}
	}

	summary := &Summary{
		RunID:    runID,
		Total:    len(assets),
		Outcomes: outcomes,
		Duration: time.Since(start),
	}
	for _, o := range outcomes {
		switch o.Status {
		case StatusPublished:
			summary.Published++
		case StatusSkipped:
			summary.Skipped++
		case StatusFailed:
			summary.Failed++
		}
		metrics.StickersProcessed.WithLabelValues(o.Status.String()).Inc()
	}

	logger.Info("import finished",
		"published", summary.Published,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", summary.Duration)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// process runs one sticker through fetch → classify/convert → publish.
func (imp *Importer) process(ctx context.Context, index int, asset Asset, logger *slog.Logger) Outcome {
	outcome := Outcome{Index: index, Ref: asset.Ref}
	logger = logger.With("index", index, "ref", asset.Ref)

	if err := ctx.Err(); err != nil {
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}

	data, hint, err := imp.source.Fetch(ctx, asset.Ref)
	if err != nil {
		logger.Error("fetch failed", "error", err)
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}
	outcome.Kind = imp.converter.Kind(data, hint)

	convStart := time.Now()
	result, err := imp.converter.Convert(ctx, data, hint)
	metrics.ConvertDuration.Observe(time.Since(convStart).Seconds())
	if err != nil {
		outcome.Err = err
		if errors.Is(err, convert.ErrUnsupported) {
			logger.Warn("unsupported format; skipping", "kind", outcome.Kind, "error", err)
			outcome.Status = StatusSkipped
		} else {
			logger.Error("conversion failed", "kind", outcome.Kind, "error", err)
			outcome.Status = StatusFailed
		}
		return outcome
	}
	metrics.StickersConverted.WithLabelValues(outcome.Kind.String()).Inc()

	ref, err := imp.publisher.Publish(ctx, result.Data, result.MIMEType)
	if err != nil {
		logger.Error("publish failed", "error", err)
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}

	outcome.Status = StatusPublished
	outcome.Sticker = manifest.NewSticker(ref, result.Width, result.Height, asset.Annotation)
	logger.Debug("sticker published",
		"kind", outcome.Kind,
		"frames", result.Frames,
		"uri", ref.URI)
	return outcome
}
