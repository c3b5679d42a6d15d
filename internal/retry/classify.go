package retry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category labels a failure so the retry loop can pick a policy.
type Category string

const (
	CategoryAIAPI        Category = "ai_api_error"
	CategoryStorage      Category = "storage_error"
	CategoryMetadata     Category = "metadata_error"
	CategoryDatabase     Category = "database_error"
	CategoryNotification Category = "notification_error"
	CategoryNetwork      Category = "network_error"
	CategoryTimeout      Category = "timeout_error"
	CategoryDeployment   Category = "deployment_error"
	CategoryValidation   Category = "validation_error"
	CategoryUnknown      Category = "unknown_error"
)

// Severity of a classified failure.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Policy controls the retry loop for one failure category.
type Policy struct {
	Retryable   bool
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Exponential bool
}

// Classification is the full verdict for a raised error.
type Classification struct {
	Category Category
	Severity Severity
	Policy   Policy
}

// Error is a failure tagged with its category at the failure site. Carrying
// the category through the call chain avoids sniffing message text later.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a tagged error.
func New(category Category, format string, args ...interface{}) *Error {
	return &Error{Category: category, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a category.
func Wrap(category Category, err error, message string) *Error {
	return &Error{Category: category, Message: message, Err: err}
}

const defaultMaxDelay = 30 * time.Second

var policies = map[Category]Classification{
	CategoryAIAPI: {
		Category: CategoryAIAPI, Severity: SeverityMedium,
		Policy: Policy{Retryable: true, MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: defaultMaxDelay, Exponential: true},
	},
	CategoryStorage: {
		Category: CategoryStorage, Severity: SeverityMedium,
		Policy: Policy{Retryable: true, MaxRetries: 3, BaseDelay: time.Second, MaxDelay: defaultMaxDelay, Exponential: true},
	},
	CategoryMetadata: {
		Category: CategoryMetadata, Severity: SeverityMedium,
		Policy: Policy{Retryable: true, MaxRetries: 2, BaseDelay: time.Second, MaxDelay: defaultMaxDelay, Exponential: true},
	},
	CategoryDatabase: {
		Category: CategoryDatabase, Severity: SeverityHigh,
		Policy: Policy{Retryable: true, MaxRetries: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: defaultMaxDelay, Exponential: true},
	},
	CategoryNotification: {
		Category: CategoryNotification, Severity: SeverityLow,
		Policy: Policy{Retryable: true, MaxRetries: 2, BaseDelay: 5 * time.Second, MaxDelay: defaultMaxDelay, Exponential: false},
	},
	CategoryNetwork: {
		Category: CategoryNetwork, Severity: SeverityMedium,
		Policy: Policy{Retryable: true, MaxRetries: 3, BaseDelay: time.Second, MaxDelay: defaultMaxDelay, Exponential: true},
	},
	CategoryTimeout: {
		Category: CategoryTimeout, Severity: SeverityMedium,
		Policy: Policy{Retryable: true, MaxRetries: 2, BaseDelay: 5 * time.Second, MaxDelay: defaultMaxDelay, Exponential: true},
	},
	CategoryDeployment: {
		Category: CategoryDeployment, Severity: SeverityCritical,
		Policy: Policy{Retryable: false},
	},
	CategoryValidation: {
		Category: CategoryValidation, Severity: SeverityHigh,
		Policy: Policy{Retryable: false},
	},
	CategoryUnknown: {
		Category: CategoryUnknown, Severity: SeverityMedium,
		Policy: Policy{Retryable: true, MaxRetries: 1, BaseDelay: 2 * time.Second, MaxDelay: defaultMaxDelay, Exponential: false},
	},
}

// Keyword fallback for errors that arrive untyped (external SDKs, wrapped
// messages). Order matters: first match wins.
var keywordCategories = []struct {
	category Category
	keywords []string
}{
	{CategoryDeployment, []string{"deployment mismatch", "version mismatch", "function not found"}},
	{CategoryValidation, []string{"validation", "invalid input", "malformed", "unsupported format", "too large"}},
	{CategoryTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{CategoryAIAPI, []string{"gemini", "google", "generativelanguage", "model overloaded", "quota"}},
	{CategoryMetadata, []string{"xmp", "metadata", "embed"}},
	{CategoryStorage, []string{"storage", "upload", "download", "bucket", "signed url"}},
	{CategoryDatabase, []string{"database", "postgres", "sql", "pgx", "constraint"}},
	{CategoryNotification, []string{"notification", "email"}},
	{CategoryNetwork, []string{"network", "connection refused", "connection reset", "dial tcp", "no such host", "eof"}},
}

// Classify maps a raised error to a category and retry policy. Tagged
// errors are trusted; everything else falls back to keyword matching on the
// message, and unmatched errors get one conservative retry.
func Classify(err error) Classification {
	if err == nil {
		return policies[CategoryUnknown]
	}

	var tagged *Error
	if errors.As(err, &tagged) {
		if c, ok := policies[tagged.Category]; ok {
			return c
		}
	}

	msg := strings.ToLower(err.Error())
	for _, kc := range keywordCategories {
		for _, kw := range kc.keywords {
			if strings.Contains(msg, kw) {
				return policies[kc.category]
			}
		}
	}

	return policies[CategoryUnknown]
}
