package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/orbitlabs/orbit-api/internal/adapter"
	"github.com/orbitlabs/orbit-api/internal/model"
	"github.com/orbitlabs/orbit-api/internal/progress"
	"github.com/orbitlabs/orbit-api/internal/retry"
)

// OrderStore is the slice of the order repository the engine needs.
type OrderStore interface {
	Get(ctx context.Context, id string) (*model.Order, error)
	MarkProcessing(ctx context.Context, id string) (bool, error)
	UpdateProgress(ctx context.Context, id string, percentage int) error
	MarkCompleted(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id, msg string) error
	UpdateBatchStatus(ctx context.Context, batchID string, status model.BatchStatus) error
}

// ImageStore is the slice of the image repository the engine needs.
type ImageStore interface {
	ListByOrder(ctx context.Context, orderID string) ([]model.Image, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkRetrying(ctx context.Context, id string, retryCount int, errMsg, errType string) error
	MarkCompleted(ctx context.Context, id, processedPath string, analysis json.RawMessage) error
	MarkFailed(ctx context.Context, id string, retryCount int, errMsg, errType string) error
	StoreAnalysis(ctx context.Context, id string, analysis json.RawMessage) error
}

// Analyzer extracts structured metadata from one image.
type Analyzer interface {
	Analyze(ctx context.Context, img *model.Image, analysisType model.AnalysisType) (*model.ImageAnalysis, error)
	HealthCheck(ctx context.Context) bool
}

// Embedder writes the processed image with embedded metadata.
type Embedder interface {
	Embed(ctx context.Context, folder string, img *model.Image, analysis *model.ImageAnalysis) (string, error)
	HealthCheck(ctx context.Context) bool
}

// Reporter writes the per-image report sidecars.
type Reporter interface {
	WriteSidecars(ctx context.Context, folder string, img *model.Image, analysis *model.ImageAnalysis) error
	HealthCheck(ctx context.Context) bool
}

// BatchChecker re-derives batch completion state from image rows.
type BatchChecker interface {
	Validate(ctx context.Context, orderID string) (*model.BatchValidation, error)
}

// StorageChecker confirms object storage matches the database.
type StorageChecker interface {
	VerifyOrder(ctx context.Context, order *model.Order, images []model.Image) (*model.StorageVerification, error)
}

// Notifier queues the completion notification.
type Notifier interface {
	QueueCompletion(ctx context.Context, orderID string) error
}

// Signer generates presigned download URLs for processed files.
type Signer interface {
	SignedURLs(ctx context.Context, keys []string, expiry time.Duration) (map[string]string, error)
}

// ProgressSink receives live progress events, typically a websocket hub.
type ProgressSink interface {
	Progress(orderID string, percentage int, message string)
	Completed(orderID string, results *model.WorkflowResults)
	Failed(orderID string, message string)
}

// Config tunes a single engine run.
type Config struct {
	MaxRetries     int     // global cap on per-image retries
	MaxFailureRate float64 // fraction of the batch allowed to fail
}

// Deps carries everything a run needs. Notifier, Signer and Hub may be nil.
type Deps struct {
	Orders   OrderStore
	Images   ImageStore
	Analyzer Analyzer
	Embedder Embedder
	Reporter Reporter
	Batch    BatchChecker
	Storage  StorageChecker
	Notifier Notifier
	Signer   Signer
	Hub      ProgressSink
	Metrics  *adapter.Metrics
}

// Engine drives one order through the five-phase workflow. An engine is
// built per run and never reused; the tracker and metrics inside it belong
// to exactly one order.
type Engine struct {
	deps    Deps
	cfg     Config
	tracker *progress.Tracker
	sleep   func(time.Duration)
}

const (
	stepClaim = iota + 1
	stepLoadImages
	stepProcess
	stepValidate
	stepFinalize
)

func NewEngine(deps Deps, cfg Config) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxFailureRate <= 0 || cfg.MaxFailureRate > 1 {
		cfg.MaxFailureRate = 0.5
	}
	if deps.Metrics == nil {
		deps.Metrics = adapter.NewMetrics()
	}
	return &Engine{
		deps: deps,
		cfg:  cfg,
		tracker: progress.NewTracker([]string{
			"Validate order and claim processing",
			"Load order images",
			"Analyze and embed metadata",
			"Validate batch results",
			"Finalize order and send notification",
		}),
		sleep: time.Sleep,
	}
}

// Run executes the workflow for one order. It always returns a response;
// run-level failures are reported inside it, never as a Go error, so the
// caller can hand partial diagnostics back over HTTP.
func (e *Engine) Run(ctx context.Context, orderID string, analysisType model.AnalysisType) (resp *model.ProcessResponse) {
	start := time.Now()
	resp = &model.ProcessResponse{
		OrchestrationType: "workflow-engine",
		OrderID:           orderID,
		Timestamp:         start.UTC(),
	}
	var phases []model.PhaseResult

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("workflow panic for order %s: %v", orderID, r)
			msg := fmt.Sprintf("internal workflow failure: %v", r)
			if err := e.deps.Orders.MarkFailed(context.WithoutCancel(ctx), orderID, msg); err != nil {
				log.Errorf("mark order %s failed after panic: %v", orderID, err)
			}
			resp.Success = false
			resp.Message = msg
			e.notifyFailed(orderID, msg)
		}
		resp.Execution = e.executionReport(time.Since(start), phases)
	}()

	// Phase 1: planning. Check eligibility and claim the order. A failure
	// here aborts the whole run.
	phaseStart := time.Now()
	order, err := e.plan(ctx, orderID)
	phases = appendPhase(phases, model.PhasePlanning, phaseStart, err)
	if err != nil {
		return e.fail(ctx, resp, orderID, err, false)
	}

	// Phase 2: discovery. Load the image rows.
	phaseStart = time.Now()
	images, err := e.discover(ctx, order)
	phases = appendPhase(phases, model.PhaseDiscovery, phaseStart, err)
	if err != nil {
		return e.fail(ctx, resp, orderID, err, true)
	}

	// Phase 3: processing. Per-image failures are isolated; the phase
	// itself only fails on context cancellation.
	phaseStart = time.Now()
	workErrors := e.processImages(ctx, order, images, analysisType)
	phases = appendPhase(phases, model.PhaseProcessing, phaseStart, ctx.Err())
	resp.Errors = workErrors
	if ctx.Err() != nil {
		return e.fail(ctx, resp, orderID, ctx.Err(), true)
	}

	// Phase 4: validation. Re-derive state from the database and cross
	// check storage; cached counters are never trusted here.
	phaseStart = time.Now()
	results, validationErr := e.validateRun(ctx, order)
	phases = appendPhase(phases, model.PhaseValidation, phaseStart, validationErr)
	resp.Results = results

	// Phase 5: reporting. Finalize the order one way or the other.
	phaseStart = time.Now()
	err = e.report(ctx, order, results, validationErr)
	phases = appendPhase(phases, model.PhaseReporting, phaseStart, err)

	if validationErr != nil {
		resp.Success = false
		resp.Message = validationErr.Error()
		return resp
	}
	if err != nil {
		resp.Success = false
		resp.Message = err.Error()
		return resp
	}

	// overall success means every step finished and none failed; a partial
	// batch can still finalize the order but reports success:false
	stepMetrics := e.tracker.Metrics()
	resp.Success = stepMetrics.Failed == 0 && stepMetrics.Pending == 0 && stepMetrics.InProgress == 0
	if resp.Success {
		resp.Message = fmt.Sprintf("order processed: %d/%d images completed",
			results.ImagesProcessed, results.ImagesTotal)
	} else {
		resp.Message = fmt.Sprintf("order finalized with failures: %d/%d images completed",
			results.ImagesProcessed, results.ImagesTotal)
	}
	return resp
}

func (e *Engine) plan(ctx context.Context, orderID string) (*model.Order, error) {
	e.startStep(stepClaim)

	// tools are checked before the claim so an aborted run leaves the order
	// unclaimed and a later run can pick it up
	if unavailable := e.checkTools(ctx); len(unavailable) > 0 {
		err := fmt.Errorf("required tools are unavailable: %s", strings.Join(unavailable, ", "))
		e.failStep(stepClaim, err.Error())
		return nil, err
	}

	order, err := e.deps.Orders.Get(ctx, orderID)
	if err != nil {
		e.failStep(stepClaim, err.Error())
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order.PaymentStatus != model.PaymentCompleted {
		err := fmt.Errorf("order %s is not paid (payment status %s)", orderID, order.PaymentStatus)
		e.failStep(stepClaim, err.Error())
		return nil, err
	}
	if order.ProcessingStage == model.StageCompleted {
		err := fmt.Errorf("order %s is already completed", orderID)
		e.failStep(stepClaim, err.Error())
		return nil, err
	}

	claimed, err := e.deps.Orders.MarkProcessing(ctx, orderID)
	if err != nil {
		e.failStep(stepClaim, err.Error())
		return nil, fmt.Errorf("claim order: %w", err)
	}
	if !claimed {
		err := fmt.Errorf("order %s is already being processed by another run", orderID)
		e.failStep(stepClaim, err.Error())
		return nil, err
	}

	if err := e.deps.Orders.UpdateBatchStatus(ctx, order.BatchID, model.BatchProcessing); err != nil {
		log.Warnf("mirror batch status for order %s: %v", orderID, err)
	}

	e.completeStep(stepClaim)
	return order, nil
}

// checkTools probes every per-image tool and returns the names of those that
// cannot serve the run.
func (e *Engine) checkTools(ctx context.Context) []string {
	var unavailable []string
	if !e.deps.Analyzer.HealthCheck(ctx) {
		unavailable = append(unavailable, "analysis")
	}
	if !e.deps.Embedder.HealthCheck(ctx) {
		unavailable = append(unavailable, "metadata")
	}
	if !e.deps.Reporter.HealthCheck(ctx) {
		unavailable = append(unavailable, "report")
	}
	return unavailable
}

func (e *Engine) discover(ctx context.Context, order *model.Order) ([]model.Image, error) {
	e.startStep(stepLoadImages)

	images, err := e.deps.Images.ListByOrder(ctx, order.ID)
	if err != nil {
		e.failStep(stepLoadImages, err.Error())
		return nil, fmt.Errorf("load images: %w", err)
	}
	if len(images) == 0 {
		err := fmt.Errorf("order %s has no images", order.ID)
		e.failStep(stepLoadImages, err.Error())
		return nil, err
	}

	e.completeStep(stepLoadImages)
	return images, nil
}

func (e *Engine) processImages(ctx context.Context, order *model.Order, images []model.Image, analysisType model.AnalysisType) []model.WorkflowError {
	e.startStep(stepProcess)

	var workErrors []model.WorkflowError
	folder := order.StorageFolder()
	done := 0

	for i := range images {
		img := &images[i]
		if ctx.Err() != nil {
			break
		}
		// recovery runs skip what already succeeded
		if img.ProcessingStatus == model.ImageCompleted {
			done++
			e.publishProgress(order, done, len(images))
			continue
		}

		if werr := e.processOne(ctx, folder, img, analysisType); werr != nil {
			workErrors = append(workErrors, *werr)
		} else {
			done++
		}
		e.publishProgress(order, done, len(images))
	}

	if len(workErrors) > 0 {
		e.failStep(stepProcess, fmt.Sprintf("%d of %d images failed", len(workErrors), len(images)))
	} else {
		e.completeStep(stepProcess)
	}
	return workErrors
}

// processOne runs the analyze/embed/report pipeline for a single image with
// category-aware retries. Returns nil on success.
func (e *Engine) processOne(ctx context.Context, folder string, img *model.Image, analysisType model.AnalysisType) *model.WorkflowError {
	if err := e.deps.Images.MarkProcessing(ctx, img.ID); err != nil {
		log.Warnf("mark image %s processing: %v", img.ID, err)
	}

	retries := 0
	for {
		step, err := e.runPipeline(ctx, folder, img, analysisType)
		if err == nil {
			return nil
		}

		c := retry.Classify(err)
		maxRetries := c.Policy.MaxRetries
		if maxRetries > e.cfg.MaxRetries {
			maxRetries = e.cfg.MaxRetries
		}

		if !c.Policy.Retryable || retries >= maxRetries || ctx.Err() != nil {
			log.Errorf("image %s failed permanently at %s after %d retries: %v",
				img.OriginalFilename, step, retries, err)
			if dbErr := e.deps.Images.MarkFailed(ctx, img.ID, retries, err.Error(), string(c.Category)); dbErr != nil {
				log.Errorf("mark image %s failed: %v", img.ID, dbErr)
			}
			return &model.WorkflowError{
				ImageID:    img.ID,
				Filename:   img.OriginalFilename,
				Step:       step,
				Category:   string(c.Category),
				Message:    err.Error(),
				RetryCount: retries,
			}
		}

		retries++
		log.Warnf("image %s failed at %s (%s), retry %d/%d: %v",
			img.OriginalFilename, step, c.Category, retries, maxRetries, err)
		if dbErr := e.deps.Images.MarkRetrying(ctx, img.ID, retries, err.Error(), string(c.Category)); dbErr != nil {
			log.Errorf("mark image %s retrying: %v", img.ID, dbErr)
		}
		e.sleep(retry.Delay(c.Policy, retries))
	}
}

// runPipeline is one attempt at the per-image pipeline. The returned step
// name says how far the attempt got.
func (e *Engine) runPipeline(ctx context.Context, folder string, img *model.Image, analysisType model.AnalysisType) (string, error) {
	analysis, err := e.deps.Analyzer.Analyze(ctx, img, analysisType)
	if err != nil {
		return "analysis", err
	}

	payload, err := json.Marshal(analysis)
	if err != nil {
		return "analysis", retry.Wrap(retry.CategoryUnknown, err, "encode analysis")
	}
	// persist the extraction immediately so a later embedding failure does
	// not throw it away
	if err := e.deps.Images.StoreAnalysis(ctx, img.ID, payload); err != nil {
		return "analysis", retry.Wrap(retry.CategoryDatabase, err, "store analysis")
	}

	processedPath, err := e.deps.Embedder.Embed(ctx, folder, img, analysis)
	if err != nil {
		return "metadata", err
	}

	if err := e.deps.Reporter.WriteSidecars(ctx, folder, img, analysis); err != nil {
		return "report", err
	}

	if err := e.deps.Images.MarkCompleted(ctx, img.ID, processedPath, payload); err != nil {
		return "report", retry.Wrap(retry.CategoryDatabase, err, "mark image completed")
	}
	return "", nil
}

func (e *Engine) validateRun(ctx context.Context, order *model.Order) (*model.WorkflowResults, error) {
	e.startStep(stepValidate)

	batch, err := e.deps.Batch.Validate(ctx, order.ID)
	if err != nil {
		e.failStep(stepValidate, err.Error())
		return nil, fmt.Errorf("batch validation: %w", err)
	}

	results := &model.WorkflowResults{
		ImagesTotal:     batch.TotalImages,
		ImagesProcessed: batch.CompletedImages,
		ImagesFailed:    batch.FailedImages,
		ImagesPending:   batch.PendingImages,
		CompletionRate:  batch.CompletionRate,
		BatchValidation: batch,
	}

	images, err := e.deps.Images.ListByOrder(ctx, order.ID)
	if err != nil {
		e.failStep(stepValidate, err.Error())
		return results, fmt.Errorf("list images for storage check: %w", err)
	}
	storage, err := e.deps.Storage.VerifyOrder(ctx, order, images)
	if err != nil {
		e.failStep(stepValidate, err.Error())
		return results, fmt.Errorf("storage verification: %w", err)
	}
	results.StorageVerification = storage

	if !batch.CanComplete {
		err := fmt.Errorf("batch cannot complete: %v", batch.Blockers)
		e.failStep(stepValidate, err.Error())
		return results, err
	}
	if batch.TotalImages > 0 {
		failureRate := float64(batch.FailedImages) / float64(batch.TotalImages)
		if failureRate >= e.cfg.MaxFailureRate {
			err := fmt.Errorf("failure rate %.0f%% exceeds the %.0f%% limit",
				failureRate*100, e.cfg.MaxFailureRate*100)
			e.failStep(stepValidate, err.Error())
			return results, err
		}
	}
	if !storage.Passed {
		err := fmt.Errorf("storage verification failed: %v", storage.Issues)
		e.failStep(stepValidate, err.Error())
		return results, err
	}

	e.completeStep(stepValidate)
	return results, nil
}

func (e *Engine) report(ctx context.Context, order *model.Order, results *model.WorkflowResults, validationErr error) error {
	e.startStep(stepFinalize)

	if validationErr != nil {
		msg := validationErr.Error()
		if err := e.deps.Orders.MarkFailed(ctx, order.ID, msg); err != nil {
			log.Errorf("mark order %s failed: %v", order.ID, err)
		}
		if err := e.deps.Orders.UpdateBatchStatus(ctx, order.BatchID, model.BatchError); err != nil {
			log.Warnf("mirror batch status for order %s: %v", order.ID, err)
		}
		e.notifyFailed(order.ID, msg)
		e.failStep(stepFinalize, msg)
		return nil
	}

	completed, err := e.deps.Orders.MarkCompleted(ctx, order.ID)
	if err != nil {
		e.failStep(stepFinalize, err.Error())
		return fmt.Errorf("mark order completed: %w", err)
	}
	if !completed {
		// The order left the processing stage under us, most likely a stuck
		// order sweep reset it. The work is durable; the next run completes.
		err := fmt.Errorf("order %s was reset during the run; not marking completed", order.ID)
		e.failStep(stepFinalize, err.Error())
		return err
	}

	if err := e.deps.Orders.UpdateBatchStatus(ctx, order.BatchID, model.BatchCompleted); err != nil {
		log.Warnf("mirror batch status for order %s: %v", order.ID, err)
	}

	if e.deps.Signer != nil {
		results.ProcessedURLs = e.signProcessed(ctx, order)
	}

	if e.deps.Notifier != nil {
		if err := e.deps.Notifier.QueueCompletion(ctx, order.ID); err != nil {
			// never block completion on the notification path
			log.Errorf("queue completion notification for order %s: %v", order.ID, err)
		} else {
			results.NotificationQueued = true
		}
	}
	if e.deps.Hub != nil {
		e.deps.Hub.Completed(order.ID, results)
	}

	e.completeStep(stepFinalize)
	return nil
}

// signProcessed generates download URLs for the processed files of a
// completed order. Signing failures only cost the caller the convenience
// links, never the completion itself.
func (e *Engine) signProcessed(ctx context.Context, order *model.Order) map[string]string {
	images, err := e.deps.Images.ListByOrder(ctx, order.ID)
	if err != nil {
		log.Warnf("list images for signing, order %s: %v", order.ID, err)
		return nil
	}

	var keys []string
	for _, img := range images {
		if img.ProcessingStatus == model.ImageCompleted && img.StoragePathProcessed != nil {
			keys = append(keys, *img.StoragePathProcessed)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	urls, err := e.deps.Signer.SignedURLs(ctx, keys, 0)
	if err != nil {
		log.Warnf("sign processed files for order %s: %v", order.ID, err)
		return nil
	}
	return urls
}

func (e *Engine) fail(ctx context.Context, resp *model.ProcessResponse, orderID string, cause error, markOrder bool) *model.ProcessResponse {
	msg := cause.Error()
	if markOrder {
		if err := e.deps.Orders.MarkFailed(ctx, orderID, msg); err != nil {
			log.Errorf("mark order %s failed: %v", orderID, err)
		}
	}
	e.notifyFailed(orderID, msg)
	resp.Success = false
	resp.Message = msg
	return resp
}

func (e *Engine) publishProgress(order *model.Order, done, total int) {
	pct := 0
	if total > 0 {
		pct = done * 100 / total
	}
	if err := e.deps.Orders.UpdateProgress(context.Background(), order.ID, pct); err != nil {
		log.Warnf("update progress for order %s: %v", order.ID, err)
	}
	if e.deps.Hub != nil {
		e.deps.Hub.Progress(order.ID, pct, fmt.Sprintf("%d of %d images processed", done, total))
	}
}

func (e *Engine) notifyFailed(orderID, msg string) {
	if e.deps.Hub != nil {
		e.deps.Hub.Failed(orderID, msg)
	}
}

// startStep begins a tracker step. A lingering previous step is a bug; it
// is logged loudly, force-closed, and the new step proceeds.
func (e *Engine) startStep(id int) {
	if err := e.tracker.Start(id); err != nil {
		log.Errorf("step tracker: %v", err)
		if abandoned := e.tracker.ForceComplete(); abandoned != 0 {
			log.Errorf("step tracker: force-closed step %d", abandoned)
			if err := e.tracker.Start(id); err != nil {
				log.Errorf("step tracker: %v", err)
			}
		}
	}
}

func (e *Engine) completeStep(id int) {
	if err := e.tracker.Complete(id); err != nil {
		log.Errorf("step tracker: %v", err)
	}
}

func (e *Engine) failStep(id int, reason string) {
	if err := e.tracker.Fail(id, reason); err != nil {
		log.Errorf("step tracker: %v", err)
	}
}

func (e *Engine) executionReport(elapsed time.Duration, phases []model.PhaseResult) *model.ExecutionReport {
	return &model.ExecutionReport{
		SessionID:       uuid.NewString(),
		TodoList:        e.tracker.Snapshot(),
		TotalDurationMs: elapsed.Milliseconds(),
		Phases:          phases,
		ToolMetrics:     e.deps.Metrics.Snapshot(),
	}
}

func appendPhase(phases []model.PhaseResult, phase model.Phase, start time.Time, err error) []model.PhaseResult {
	result := model.PhaseResult{
		Phase:      phase,
		Success:    err == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return append(phases, result)
}
