package model

// Order processing stages
type ProcessingStage string

const (
	StageInitializing ProcessingStage = "initializing"
	StageProcessing   ProcessingStage = "processing"
	StageCompleted    ProcessingStage = "completed"
	StageError        ProcessingStage = "error"
)

// Payment status
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Batch status
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchError      BatchStatus = "error"
)

// Per-image processing status
type ImageStatus string

const (
	ImagePending    ImageStatus = "pending"
	ImageProcessing ImageStatus = "processing"
	ImageRetrying   ImageStatus = "retrying"
	ImageCompleted  ImageStatus = "completed"
	ImageError      ImageStatus = "error"
)

// Analysis types
type AnalysisType string

const (
	AnalysisProduct   AnalysisType = "product"
	AnalysisLifestyle AnalysisType = "lifestyle"
)

var ValidAnalysisTypes = []AnalysisType{AnalysisProduct, AnalysisLifestyle}

// Workflow actions accepted on the inbound trigger
type WorkflowAction string

const (
	ActionProcess  WorkflowAction = "process"
	ActionRecover  WorkflowAction = "recover"
	ActionValidate WorkflowAction = "validate"
	ActionDebug    WorkflowAction = "debug"
)

// Report formats
type ReportFormat string

const (
	ReportDetailed  ReportFormat = "detailed"
	ReportSimple    ReportFormat = "simple"
	ReportJSON      ReportFormat = "json"
	ReportMarketing ReportFormat = "marketing"
	ReportTechnical ReportFormat = "technical"
)

var ValidReportFormats = []ReportFormat{
	ReportDetailed, ReportSimple, ReportJSON, ReportMarketing, ReportTechnical,
}

// Todo step status
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
	TodoFailed     TodoStatus = "failed"
)

// Workflow phases, strictly sequential
type Phase string

const (
	PhasePlanning   Phase = "planning"
	PhaseDiscovery  Phase = "discovery"
	PhaseProcessing Phase = "processing"
	PhaseValidation Phase = "validation"
	PhaseReporting  Phase = "reporting"
)

// Component health
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)
