package model

import (
	"encoding/json"
	"time"
)

// Order represents a paid image batch awaiting or undergoing processing.
// Rows are created by the checkout flow; this service only mutates
// processing state, never creates or deletes orders.
type Order struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"userId"`
	BatchID              string          `json:"batchId"`
	ImageCount           int             `json:"imageCount"`
	PaymentStatus        PaymentStatus   `json:"paymentStatus"`
	ProcessingStage      ProcessingStage `json:"processingStage"`
	CompletionPercentage int             `json:"processingCompletionPercentage"`
	ErrorMessage         *string         `json:"errorMessage,omitempty"`
	NotificationStatus   *string         `json:"notificationStatus,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	ProcessingStartedAt  *time.Time      `json:"processingStartedAt,omitempty"`
	CompletedAt          *time.Time      `json:"completedAt,omitempty"`
}

// StorageFolder returns the object storage folder this order's files live
// under: "{batchId}_{userId}", falling back to the order id when the order
// predates batch support. The convention is load-bearing for verification.
func (o *Order) StorageFolder() string {
	if o.BatchID != "" {
		return o.BatchID + "_" + o.UserID
	}
	return o.ID + "_" + o.UserID
}

// Image is a single uploaded file within an order.
type Image struct {
	ID                   string          `json:"id"`
	OrderID              string          `json:"orderId"`
	OriginalFilename     string          `json:"originalFilename"`
	StoragePathOriginal  string          `json:"storagePathOriginal"`
	StoragePathProcessed *string         `json:"storagePathProcessed,omitempty"`
	ProcessingStatus     ImageStatus     `json:"processingStatus"`
	RetryCount           int             `json:"retryCount"`
	LastError            *string         `json:"lastError,omitempty"`
	LastErrorType        *string         `json:"lastErrorType,omitempty"`
	AIAnalysis           json.RawMessage `json:"aiAnalysis,omitempty"`
	FileSize             int64           `json:"fileSize"`
	MimeType             string          `json:"mimeType"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}
