package service

import (
	"context"
	"fmt"
	"time"

	"go-wsi-cohort/internal/analyzer"
	apperrors "go-wsi-cohort/internal/errors"
	"go-wsi-cohort/internal/logger"
	"go-wsi-cohort/internal/normalizer"
	"go-wsi-cohort/internal/observer"
	"go-wsi-cohort/internal/repository"
	"go-wsi-cohort/internal/strategy"
	"go-wsi-cohort/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// cancelGrace bounds the wait for the image in flight once a run is canceled
const cancelGrace = 5 * time.Second

// Abort reasons reported in the summary of a partial run
const (
	AbortCanceled  = "canceled"
	AbortMaxErrors = "max_errors_exceeded"
	AbortOnFailure = "stopped_on_failure"
)

// CohortService aggregates per-image records across a collection
type CohortService interface {
	// ProcessCollection lists the repository and processes every image
	ProcessCollection(ctx context.Context, repo repository.ImageRepository) (*models.CohortResult, error)

	// ProcessRefs processes the given images in order
	ProcessRefs(ctx context.Context, repo repository.ImageRepository, refs []repository.ImageRef) (*models.CohortResult, error)
}

// ProcessingOptions is the error policy and identity of a run
type ProcessingOptions struct {
	ProjectName string
	ToolVersion string

	ContinueOnError     bool
	MaxErrorsBeforeStop int // 0 = unlimited; counts FAILED and ERROR entries
	SkipCorruptedImages bool
	RetryFailed         bool // accepted, never acted upon
	ImageTimeout        time.Duration
}

// DefaultProcessingOptions continues past every error with a two minute
// per-image timeout
func DefaultProcessingOptions() ProcessingOptions {
	return ProcessingOptions{
		ContinueOnError:     true,
		SkipCorruptedImages: true,
		ImageTimeout:        2 * time.Minute,
	}
}

// cohortService implements CohortService
type cohortService struct {
	normalizer *normalizer.Normalizer
	quality    *analyzer.QualityAnalyzer
	extractors *strategy.Chain
	publisher  observer.Subject
	analysis   analyzer.AnalysisOptions
	opts       ProcessingOptions
	newRunID   func() string
	now        func() time.Time
}

// NewCohortService creates the aggregator. A nil chain or publisher is
// replaced by an empty one.
func NewCohortService(
	norm *normalizer.Normalizer,
	quality *analyzer.QualityAnalyzer,
	extractors *strategy.Chain,
	publisher observer.Subject,
	analysis analyzer.AnalysisOptions,
	opts ProcessingOptions,
) CohortService {
	if extractors == nil {
		extractors = strategy.NewChain()
	}
	if publisher == nil {
		publisher = observer.NewEventPublisher()
	}
	return &cohortService{
		normalizer: norm,
		quality:    quality,
		extractors: extractors,
		publisher:  publisher,
		analysis:   analysis,
		opts:       opts,
		newRunID:   uuid.NewString,
		now:        time.Now,
	}
}

// imageOutcome is the result of one image, committed in traversal order
type imageOutcome struct {
	ref      repository.ImageRef
	name     string
	record   *models.Record
	failure  error
	canceled bool
	duration time.Duration
}

// runState tracks the counters that decide whether a run stops early
type runState struct {
	result *models.CohortResult
	errors int
}

// ProcessCollection lists the repository and processes every image
func (s *cohortService) ProcessCollection(ctx context.Context, repo repository.ImageRepository) (*models.CohortResult, error) {
	refs, err := repo.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list image collection", err)
	}
	return s.ProcessRefs(ctx, repo, refs)
}

// ProcessRefs processes the given images. Per-image and per-field failures are
// absorbed into the processing log; the returned error is nil unless the run
// could not start. A run stopped early is returned with Summary.Partial set.
func (s *cohortService) ProcessRefs(ctx context.Context, repo repository.ImageRepository, refs []repository.ImageRef) (*models.CohortResult, error) {
	if repo == nil {
		return nil, apperrors.NewInternalError("no image repository configured", nil)
	}

	run := &runState{result: &models.CohortResult{
		Records: make([]*models.Record, 0, len(refs)),
		Summary: models.Summary{
			RunID:       s.newRunID(),
			ProjectName: s.opts.ProjectName,
			ToolVersion: s.opts.ToolVersion,
			StartedAt:   s.now().UTC(),
		},
	}}
	summary := &run.result.Summary

	if s.opts.RetryFailed {
		logger.WithField("run_id", summary.RunID).Warn("retry_failed is not supported; failed images are not retried")
	}

	s.publisher.NotifyObservers(ctx, observer.ExtractionEvent{
		EventType: observer.RunStarted,
		RunID:     summary.RunID,
		Metadata:  map[string]interface{}{"images": len(refs)},
	})

	if s.analysis.UseWorkerPool && len(refs) > 1 {
		s.processParallel(ctx, repo, refs, run)
	} else {
		s.processSequential(ctx, repo, refs, run)
	}

	summary.FinishedAt = s.now().UTC()
	if summary.ProjectName == "" && len(run.result.Records) > 0 {
		summary.ProjectName, _ = run.result.Records[0].String(models.FieldProjectName)
	}
	s.publisher.NotifyObservers(ctx, observer.ExtractionEvent{
		EventType:      observer.RunCompleted,
		RunID:          summary.RunID,
		ProcessingTime: summary.FinishedAt.Sub(summary.StartedAt),
		Success:        !summary.Partial,
		Metadata: map[string]interface{}{
			"attempted":    summary.Attempted,
			"succeeded":    summary.Succeeded,
			"failed":       summary.Failed,
			"field_errors": summary.FieldErrors,
			"partial":      summary.Partial,
		},
	})
	s.publisher.Wait()

	return run.result, nil
}

func (s *cohortService) processSequential(ctx context.Context, repo repository.ImageRepository, refs []repository.ImageRef, run *runState) {
	for _, ref := range refs {
		// Cancellation is honored between images only
		if ctx.Err() != nil {
			s.abort(run, AbortCanceled)
			return
		}
		out := s.processImage(ctx, repo, ref, run.result.Summary.RunID)
		if out.canceled {
			s.abort(run, AbortCanceled)
			return
		}
		if !s.commit(run, out) {
			return
		}
	}
}

// processParallel extracts on the worker pool. Each job writes its own slot
// and slots are committed in traversal order afterwards, so records, log and
// abort decisions are the same as in a sequential run.
func (s *cohortService) processParallel(ctx context.Context, repo repository.ImageRepository, refs []repository.ImageRef, run *runState) {
	pool := analyzer.NewWorkerPool(s.analysis.MaxWorkers)
	pool.Start()
	defer pool.Close()

	outcomes := make([]imageOutcome, len(refs))
	runID := run.result.Summary.RunID
	for i, ref := range refs {
		i, ref := i, ref
		pool.Submit(func() {
			if ctx.Err() != nil {
				outcomes[i] = imageOutcome{ref: ref, name: ref.Name, canceled: true}
				return
			}
			outcomes[i] = s.processImage(ctx, repo, ref, runID)
		})
	}
	pool.Wait()

	for _, out := range outcomes {
		if out.canceled {
			s.abort(run, AbortCanceled)
			return
		}
		if !s.commit(run, out) {
			return
		}
	}
}

// processImage opens, normalizes and enriches one image under the per-image
// timeout. A hung collaborator is abandoned when the timeout fires.
func (s *cohortService) processImage(ctx context.Context, repo repository.ImageRepository, ref repository.ImageRef, runID string) imageOutcome {
	start := time.Now()
	name := ref.Name
	if name == "" {
		name = ref.ID
	}

	s.publisher.NotifyObservers(ctx, observer.ExtractionEvent{
		EventType: observer.ImageStarted,
		RunID:     runID,
		Image:     name,
	})

	imgCtx := ctx
	cancel := func() {}
	if s.opts.ImageTimeout > 0 {
		imgCtx, cancel = context.WithTimeout(ctx, s.opts.ImageTimeout)
	}
	defer cancel()

	done := make(chan imageOutcome, 1)
	go func() {
		done <- s.extract(imgCtx, repo, ref, name)
	}()

	var out imageOutcome
	select {
	case out = <-done:
	case <-imgCtx.Done():
		out = s.interrupted(ctx, imgCtx, ref, name, done)
	}
	out.duration = time.Since(start)

	switch {
	case out.canceled:
	case out.failure != nil:
		s.publisher.NotifyObservers(ctx, observer.ExtractionEvent{
			EventType:      observer.ImageFailed,
			RunID:          runID,
			Image:          out.name,
			ProcessingTime: out.duration,
			ErrorMessage:   out.failure.Error(),
		})
	default:
		s.publisher.NotifyObservers(ctx, observer.ExtractionEvent{
			EventType:      observer.ImageCompleted,
			RunID:          runID,
			Image:          out.name,
			ProcessingTime: out.duration,
			Success:        true,
			Metadata:       map[string]interface{}{"fields": out.record.Len()},
		})
	}
	return out
}

// interrupted builds the outcome of an image whose context ended first. When
// the run was canceled the image in flight gets cancelGrace to finish; a
// per-image timeout is recorded as a failure.
func (s *cohortService) interrupted(ctx, imgCtx context.Context, ref repository.ImageRef, name string, done <-chan imageOutcome) imageOutcome {
	if ctx.Err() != nil {
		select {
		case out := <-done:
			return out
		case <-time.After(cancelGrace):
			return imageOutcome{ref: ref, name: name, canceled: true}
		}
	}
	return imageOutcome{ref: ref, name: name, failure: apperrors.NewTimeoutError(
		fmt.Sprintf("image %s exceeded the %s timeout", name, s.opts.ImageTimeout), imgCtx.Err())}
}

// extract runs the per-image state machine:
// PENDING -> OPENED -> NORMALIZED -> ENRICHED, or PENDING -> OPEN_FAILED
func (s *cohortService) extract(ctx context.Context, repo repository.ImageRepository, ref repository.ImageRef, name string) (out imageOutcome) {
	out = imageOutcome{ref: ref, name: name}
	defer func() {
		if r := recover(); r != nil {
			out.record = nil
			out.failure = apperrors.NewInternalError(fmt.Sprintf("panic while processing %s: %v", name, r), nil)
		}
	}()

	desc, err := repo.Open(ctx, ref)
	if err != nil {
		out.failure = apperrors.NewOpenFailure(name, "failed to open image", err)
		return out
	}
	if desc.Name() != "" {
		out.name = desc.Name()
	}

	if s.opts.SkipCorruptedImages {
		if dims, err := desc.Dimensions(); err == nil && (dims.Width <= 0 || dims.Height <= 0) {
			out.failure = apperrors.NewOpenFailure(out.name,
				fmt.Sprintf("corrupted image: dimensions %dx%d", dims.Width, dims.Height), nil)
			return out
		}
	}

	rec := s.normalizer.Normalize(ctx, desc)
	if s.quality != nil {
		s.quality.Analyze(rec, desc)
	}
	s.extractors.Execute(ctx, desc, rec)

	out.record = rec
	return out
}

// commit appends one outcome to the result and reports whether the run goes on
func (s *cohortService) commit(run *runState, out imageOutcome) bool {
	result := run.result
	summary := &result.Summary
	summary.Attempted++
	now := s.now().UTC()

	if out.failure != nil {
		summary.Failed++
		run.errors++
		result.Log = append(result.Log, models.LogEntry{
			Outcome: models.OutcomeFailed,
			Image:   out.name,
			Detail:  out.failure.Error(),
			Time:    now,
		})

		if !s.opts.ContinueOnError {
			s.abort(run, AbortOnFailure)
			return false
		}
		return !s.tooManyErrors(run)
	}

	summary.Succeeded++
	result.Records = append(result.Records, out.record)
	result.Log = append(result.Log, models.LogEntry{
		Outcome: models.OutcomeSuccess,
		Image:   out.name,
		Time:    now,
	})

	for _, fe := range out.record.Errors {
		summary.FieldErrors++
		run.errors++
		result.Log = append(result.Log, models.LogEntry{
			Outcome: models.OutcomeError,
			Image:   out.name,
			Field:   fe.Field,
			Detail:  fe.Message,
			Time:    now,
		})
		s.publisher.NotifyObservers(context.Background(), observer.ExtractionEvent{
			EventType:    observer.FieldFailed,
			RunID:        summary.RunID,
			Image:        out.name,
			Field:        fe.Field,
			ErrorMessage: fe.Message,
		})
	}

	return !s.tooManyErrors(run)
}

func (s *cohortService) tooManyErrors(run *runState) bool {
	limit := s.opts.MaxErrorsBeforeStop
	if limit > 0 && run.errors > limit {
		s.abort(run, AbortMaxErrors)
		return true
	}
	return false
}

func (s *cohortService) abort(run *runState, reason string) {
	summary := &run.result.Summary
	summary.Partial = true
	summary.AbortReason = reason
	logger.WithFields(logrus.Fields{
		"run_id":    summary.RunID,
		"reason":    reason,
		"attempted": summary.Attempted,
	}).Warn("Cohort run stopped early; results are partial")
}
