package model

// BatchValidation is the result of re-checking every image's database state
// after processing. Derived on each call, never persisted.
type BatchValidation struct {
	OrderID              string   `json:"orderId"`
	TotalImages          int      `json:"totalImages"`
	CompletedImages      int      `json:"completedImages"`
	FailedImages         int      `json:"failedImages"`
	PendingImages        int      `json:"pendingImages"`
	RetryableFailures    int      `json:"retryableFailures"`
	MissingProcessedPath int      `json:"missingProcessedPath"`
	MissingAnalysis      int      `json:"missingAnalysis"`
	CompletionRate       float64  `json:"completionRate"` // percentage, 0-100
	CanComplete          bool     `json:"canComplete"`
	IsValid              bool     `json:"isValid"`
	Blockers             []string `json:"blockers,omitempty"`
	Recommendations      []string `json:"recommendations,omitempty"`
}

// StorageVerification confirms that expected files actually exist in the
// object store, independent of what the database claims.
type StorageVerification struct {
	OrderID         string   `json:"orderId"`
	Folder          string   `json:"folder"`
	FolderValid     bool     `json:"folderValid"`
	OriginalCount   int      `json:"originalCount"`
	ProcessedCount  int      `json:"processedCount"`
	MissingOriginal []string `json:"missingOriginal,omitempty"`
	MissingFiles    []string `json:"missingFiles,omitempty"`
	ExtraFiles      []string `json:"extraFiles,omitempty"`
	Passed          bool     `json:"passed"`
	Issues          []string `json:"issues,omitempty"`
}
