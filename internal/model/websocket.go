package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage is sent as the workflow moves through its steps.
type WSProgressMessage struct {
	Type        string          `json:"type"`
	OrderID     string          `json:"orderId"`
	Stage       ProcessingStage `json:"stage"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"currentStep,omitempty"`
}

// WSCompleteMessage is sent when the workflow run ends.
type WSCompleteMessage struct {
	Type    string      `json:"type"`
	OrderID string      `json:"orderId"`
	Result  interface{} `json:"result"`
}

// WSErrorMessage is sent for per-image or run-level failures.
type WSErrorMessage struct {
	Type    string  `json:"type"`
	OrderID string  `json:"orderId"`
	Error   WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
