package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/hibiken/asynq"

	"github.com/orbitlabs/orbit-api/internal/adapter"
	"github.com/orbitlabs/orbit-api/internal/client"
	"github.com/orbitlabs/orbit-api/internal/config"
	"github.com/orbitlabs/orbit-api/internal/model"
	"github.com/orbitlabs/orbit-api/internal/repository"
	"github.com/orbitlabs/orbit-api/internal/validate"
	"github.com/orbitlabs/orbit-api/internal/websocket"
	"github.com/orbitlabs/orbit-api/internal/worker"
	"github.com/orbitlabs/orbit-api/internal/workflow"
)

// ProcessService dispatches inbound workflow triggers. It builds a fresh
// engine per run; nothing about a run outlives its request.
type ProcessService struct {
	cfg       *config.Config
	orders    *repository.OrderRepository
	images    *repository.ImageRepository
	storage   client.StorageClient
	gemini    *client.GeminiClient
	discovery *DiscoveryService
	health    *HealthService
	queue     *asynq.Client
	hub       *websocket.Hub
}

func NewProcessService(
	cfg *config.Config,
	orders *repository.OrderRepository,
	images *repository.ImageRepository,
	storage client.StorageClient,
	gemini *client.GeminiClient,
	discovery *DiscoveryService,
	health *HealthService,
	queue *asynq.Client,
	hub *websocket.Hub,
) *ProcessService {
	return &ProcessService{
		cfg:       cfg,
		orders:    orders,
		images:    images,
		storage:   storage,
		gemini:    gemini,
		discovery: discovery,
		health:    health,
		queue:     queue,
		hub:       hub,
	}
}

// Process handles one inbound trigger. The default action is a full
// processing run; recover re-runs skipping completed work, validate is
// read-only, and debug reports component health and order state.
func (s *ProcessService) Process(ctx context.Context, req *model.ProcessRequest) *model.ProcessResponse {
	action := req.Action
	if action == "" {
		action = model.ActionProcess
	}

	var resp *model.ProcessResponse
	switch action {
	case model.ActionProcess:
		resp = s.runWorkflow(ctx, req)
	case model.ActionRecover:
		resp = s.recover(ctx, req)
	case model.ActionValidate:
		resp = s.validateOnly(ctx, req.OrderID)
	case model.ActionDebug:
		return s.debug(ctx, req.OrderID)
	default:
		return failureResponse(req.OrderID, string(action),
			fmt.Sprintf("unknown action %q", action))
	}

	// debug mode tacks the component health summary onto any action
	if req.DebugMode {
		appendHealthSummary(resp, s.health.Report(ctx))
	}
	return resp
}

func (s *ProcessService) runWorkflow(ctx context.Context, req *model.ProcessRequest) *model.ProcessResponse {
	if s.storage == nil {
		return failureResponse(req.OrderID, "workflow-engine", "object storage is not configured")
	}

	metrics := adapter.NewMetrics()
	engine := workflow.NewEngine(workflow.Deps{
		Orders:   s.orders,
		Images:   s.images,
		Analyzer: adapter.NewAnalysisAdapter(s.storage, s.gemini, metrics, s.cfg.Workflow.MockMode),
		Embedder: adapter.NewMetadataAdapter(s.storage, metrics, s.cfg.Workflow.CompressionQuality),
		Reporter: adapter.NewReportAdapter(s.storage, metrics),
		Batch:    validate.NewBatchValidator(s.images, s.cfg.Workflow.MaxRetries),
		Storage:  validate.NewStorageVerifier(s.storage),
		Notifier: s,
		Signer:   adapter.NewStorageAdapter(s.storage, metrics),
		Hub:      s.hub,
		Metrics:  metrics,
	}, workflow.Config{
		MaxRetries:     s.cfg.Workflow.MaxRetries,
		MaxFailureRate: s.cfg.Workflow.MaxFailureRate,
	})

	return engine.Run(ctx, req.OrderID, req.AnalysisType)
}

// recover sweeps stuck orders first, then re-runs the workflow. The engine
// skips images that already completed, so recovery only redoes failed and
// pending work.
func (s *ProcessService) recover(ctx context.Context, req *model.ProcessRequest) *model.ProcessResponse {
	if _, err := s.discovery.FindPendingOrders(ctx); err != nil {
		log.Warnf("pre-recovery discovery failed: %v", err)
	}
	resp := s.runWorkflow(ctx, req)
	resp.OrchestrationType = "recovery"
	return resp
}

func (s *ProcessService) validateOnly(ctx context.Context, orderID string) *model.ProcessResponse {
	resp := &model.ProcessResponse{
		OrchestrationType: "validation",
		OrderID:           orderID,
		Timestamp:         time.Now().UTC(),
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		resp.Message = fmt.Sprintf("load order: %v", err)
		return resp
	}

	batch, err := validate.NewBatchValidator(s.images, s.cfg.Workflow.MaxRetries).Validate(ctx, orderID)
	if err != nil {
		resp.Message = fmt.Sprintf("batch validation: %v", err)
		return resp
	}
	results := &model.WorkflowResults{
		ImagesTotal:     batch.TotalImages,
		ImagesProcessed: batch.CompletedImages,
		ImagesFailed:    batch.FailedImages,
		ImagesPending:   batch.PendingImages,
		CompletionRate:  batch.CompletionRate,
		BatchValidation: batch,
	}
	resp.Results = results

	if s.storage != nil {
		images, err := s.images.ListByOrder(ctx, orderID)
		if err == nil {
			if verification, verr := validate.NewStorageVerifier(s.storage).VerifyOrder(ctx, order, images); verr == nil {
				results.StorageVerification = verification
			} else {
				log.Warnf("storage verification for order %s: %v", orderID, verr)
			}
		}
	}

	resp.Success = batch.CanComplete &&
		(results.StorageVerification == nil || results.StorageVerification.Passed)
	if resp.Success {
		resp.Message = fmt.Sprintf("order %s is consistent: %d/%d images completed",
			orderID, batch.CompletedImages, batch.TotalImages)
	} else {
		resp.Message = fmt.Sprintf("order %s has blockers: %v", orderID, batch.Blockers)
	}
	return resp
}

func (s *ProcessService) debug(ctx context.Context, orderID string) *model.ProcessResponse {
	resp := s.validateOnly(ctx, orderID)
	resp.OrchestrationType = "debug"
	appendHealthSummary(resp, s.health.Report(ctx))
	return resp
}

// appendHealthSummary folds the overall component health and any unhealthy
// components into the response message.
func appendHealthSummary(resp *model.ProcessResponse, report *model.HealthReport) {
	resp.Message = fmt.Sprintf("%s | overall health: %s", resp.Message, report.Overall)
	for component, state := range report.Components {
		if state != model.HealthHealthy {
			resp.Message = fmt.Sprintf("%s | %s: %s", resp.Message, component, state)
		}
	}
}

// QueueCompletion implements the workflow notifier by enqueueing the
// completion email task.
func (s *ProcessService) QueueCompletion(ctx context.Context, orderID string) error {
	if s.queue == nil {
		return fmt.Errorf("task queue is not configured")
	}
	task, err := worker.NewCompletionNotifyTask(orderID)
	if err != nil {
		return err
	}
	info, err := s.queue.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue completion notification: %w", err)
	}
	log.Infof("queued completion notification for order %s (task %s)", orderID, info.ID)
	return nil
}

// Discovery exposes pending-order discovery for the CLI and debug surface.
func (s *ProcessService) Discovery(ctx context.Context) (*model.DiscoveryResult, error) {
	return s.discovery.FindPendingOrders(ctx)
}

// OrderStatus returns the current order, its image rows, and the per-status
// image counts.
func (s *ProcessService) OrderStatus(ctx context.Context, orderID string) (*model.Order, []model.Image, map[model.ImageStatus]int, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	images, err := s.images.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	counts, err := s.images.CountByStatus(ctx, orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	return order, images, counts, nil
}

func failureResponse(orderID, orchestrationType, msg string) *model.ProcessResponse {
	return &model.ProcessResponse{
		Success:           false,
		OrchestrationType: orchestrationType,
		OrderID:           orderID,
		Message:           msg,
		Timestamp:         time.Now().UTC(),
	}
}
