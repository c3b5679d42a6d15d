package model

import "time"

// ProcessRequest is the inbound trigger for a workflow run.
type ProcessRequest struct {
	OrderID      string         `json:"orderId" validate:"required"`
	Action       WorkflowAction `json:"action,omitempty" validate:"omitempty,oneof=process recover validate debug"`
	AnalysisType AnalysisType   `json:"analysisType,omitempty" validate:"omitempty,oneof=product lifestyle"`
	DebugMode    bool           `json:"debugMode,omitempty"`
}

// ProcessResponse is the structured result of a workflow invocation.
// It is returned for both successful and failed runs; operators diagnose
// partial failures from the todo list and error entries without log access.
type ProcessResponse struct {
	Success           bool             `json:"success"`
	OrchestrationType string           `json:"orchestrationType"`
	OrderID           string           `json:"orderId"`
	Message           string           `json:"message"`
	Execution         *ExecutionReport `json:"execution,omitempty"`
	Results           *WorkflowResults `json:"results,omitempty"`
	Errors            []WorkflowError  `json:"errors,omitempty"`
	Timestamp         time.Time        `json:"timestamp"`
}

// Todo is a named unit of work within a single workflow run.
type Todo struct {
	ID          int        `json:"id"`
	Content     string     `json:"content"`
	Status      TodoStatus `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	DurationMs  int64      `json:"durationMs,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// TodoMetrics aggregates tracker state for progress reporting.
type TodoMetrics struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	InProgress     int     `json:"inProgress"`
	Pending        int     `json:"pending"`
	CompletionRate float64 `json:"completionRate"` // percentage, 0-100
	AvgDurationMs  int64   `json:"avgDurationMs"`
}

// ExecutionReport carries per-run timings and tool usage.
type ExecutionReport struct {
	SessionID       string                `json:"sessionId"`
	TodoList        []Todo                `json:"todoList"`
	TotalDurationMs int64                 `json:"totalDuration"`
	Phases          []PhaseResult         `json:"phases"`
	ToolMetrics     map[string]ToolMetric `json:"toolMetrics"`
}

type PhaseResult struct {
	Phase      Phase  `json:"phase"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

type ToolMetric struct {
	Calls       int   `json:"calls"`
	Failures    int   `json:"failures"`
	TotalTimeMs int64 `json:"totalTimeMs"`
}

// WorkflowResults summarizes the batch outcome.
type WorkflowResults struct {
	ImagesTotal         int                  `json:"imagesTotal"`
	ImagesProcessed     int                  `json:"imagesProcessed"`
	ImagesFailed        int                  `json:"imagesFailed"`
	ImagesPending       int                  `json:"imagesPending"`
	CompletionRate      float64              `json:"completionRate"` // percentage, 0-100
	BatchValidation     *BatchValidation     `json:"batchValidation,omitempty"`
	StorageVerification *StorageVerification `json:"storageVerification,omitempty"`
	ProcessedURLs       map[string]string    `json:"processedUrls,omitempty"`
	NotificationQueued  bool                 `json:"notificationQueued"`
}

// WorkflowError describes one permanent per-image failure.
type WorkflowError struct {
	ImageID    string `json:"imageId"`
	Filename   string `json:"filename"`
	Step       string `json:"step"`
	Category   string `json:"category"`
	Message    string `json:"message"`
	RetryCount int    `json:"retryCount"`
}

// DiscoveryResult is returned by the recover action.
type DiscoveryResult struct {
	FoundOrders        []Order `json:"foundOrders"`
	TotalPendingOrders int     `json:"totalPendingOrders"`
	StuckOrders        []Order `json:"stuckOrders"`
}

// HealthReport aggregates component health checks.
type HealthReport struct {
	Overall    HealthState            `json:"overall"`
	Components map[string]HealthState `json:"components"`
	Details    map[string]string      `json:"details,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}
