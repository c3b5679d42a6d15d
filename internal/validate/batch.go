package validate

import (
	"context"
	"fmt"

	"github.com/orbitlabs/orbit-api/internal/model"
)

// ImageLister is the slice of the image repository batch validation needs.
type ImageLister interface {
	ListByOrder(ctx context.Context, orderID string) ([]model.Image, error)
}

// BatchValidator re-derives batch state from the image rows. It never
// trusts counters cached on the order.
type BatchValidator struct {
	images     ImageLister
	maxRetries int
}

func NewBatchValidator(images ImageLister, maxRetries int) *BatchValidator {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &BatchValidator{images: images, maxRetries: maxRetries}
}

// Validate inspects every image row and decides whether the order can be
// marked completed. CanComplete requires zero in-flight images, zero
// database inconsistencies, and at least one success; IsValid additionally
// requires that nothing failed.
func (v *BatchValidator) Validate(ctx context.Context, orderID string) (*model.BatchValidation, error) {
	images, err := v.images.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list images for validation: %w", err)
	}

	result := &model.BatchValidation{
		OrderID:     orderID,
		TotalImages: len(images),
	}

	for _, img := range images {
		switch img.ProcessingStatus {
		case model.ImageCompleted:
			result.CompletedImages++
			if img.StoragePathProcessed == nil || *img.StoragePathProcessed == "" {
				result.MissingProcessedPath++
			}
			if len(img.AIAnalysis) == 0 {
				result.MissingAnalysis++
			}
		case model.ImageError:
			result.FailedImages++
			if img.RetryCount < v.maxRetries && !isTerminalErrorType(img.LastErrorType) {
				result.RetryableFailures++
			}
		default:
			// pending, processing and retrying all mean the batch is not done
			result.PendingImages++
		}
	}

	if result.TotalImages > 0 {
		result.CompletionRate = float64(result.CompletedImages) / float64(result.TotalImages) * 100
	}

	if result.PendingImages > 0 {
		result.Blockers = append(result.Blockers,
			fmt.Sprintf("%d images still in flight", result.PendingImages))
	}
	if result.MissingProcessedPath > 0 {
		result.Blockers = append(result.Blockers,
			fmt.Sprintf("%d completed images have no processed file path", result.MissingProcessedPath))
	}
	if result.MissingAnalysis > 0 {
		result.Blockers = append(result.Blockers,
			fmt.Sprintf("%d completed images have no stored analysis", result.MissingAnalysis))
	}
	if result.CompletedImages == 0 {
		result.Blockers = append(result.Blockers, "no images completed successfully")
	}

	if result.RetryableFailures > 0 {
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("re-run with action=recover to retry %d failed images", result.RetryableFailures))
	}
	if result.FailedImages > result.RetryableFailures {
		result.Recommendations = append(result.Recommendations,
			"some failures are permanent; the affected uploads need to be replaced")
	}

	result.CanComplete = len(result.Blockers) == 0
	result.IsValid = result.CanComplete && result.FailedImages == 0

	return result, nil
}

func isTerminalErrorType(errType *string) bool {
	if errType == nil {
		return false
	}
	switch *errType {
	case "validation_error", "deployment_error":
		return true
	}
	return false
}
