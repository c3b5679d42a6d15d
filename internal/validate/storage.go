package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/orbitlabs/orbit-api/internal/adapter"
	"github.com/orbitlabs/orbit-api/internal/client"
	"github.com/orbitlabs/orbit-api/internal/model"
)

// sidecar suffixes written next to each processed image; they are expected
// and never reported as extra files.
var sidecarSuffixes = []string{".xmp", "_report.txt", "_technical.txt", "_marketing.txt"}

// StorageVerifier cross-checks object storage against the database rows.
type StorageVerifier struct {
	storage client.StorageClient
}

func NewStorageVerifier(storage client.StorageClient) *StorageVerifier {
	return &StorageVerifier{storage: storage}
}

// VerifyOrder confirms the storage folder layout matches what the image
// rows claim: every original exists, every completed image has its
// processed file, and nothing unexpected sits in the processed prefix.
func (v *StorageVerifier) VerifyOrder(ctx context.Context, order *model.Order, images []model.Image) (*model.StorageVerification, error) {
	folder := order.StorageFolder()
	result := &model.StorageVerification{
		OrderID:     order.ID,
		Folder:      folder,
		FolderValid: folderNameValid(folder),
	}
	if !result.FolderValid {
		result.Issues = append(result.Issues, fmt.Sprintf("folder %q does not match the {batchId}_{userId} convention", folder))
	}

	originals, err := v.storage.List(ctx, folder+"/original/")
	if err != nil {
		return nil, fmt.Errorf("list originals: %w", err)
	}
	processed, err := v.storage.List(ctx, folder+"/processed/")
	if err != nil {
		return nil, fmt.Errorf("list processed: %w", err)
	}
	result.OriginalCount = len(originals)

	originalKeys := make(map[string]bool, len(originals))
	for _, f := range originals {
		originalKeys[f.Path] = true
	}
	processedKeys := make(map[string]bool, len(processed))
	for _, f := range processed {
		processedKeys[f.Path] = true
		if !isSidecar(f.Name) {
			result.ProcessedCount++
		}
	}

	expectedProcessed := make(map[string]bool)
	for _, img := range images {
		if !originalKeys[img.StoragePathOriginal] {
			result.MissingOriginal = append(result.MissingOriginal, img.StoragePathOriginal)
		}
		if img.ProcessingStatus != model.ImageCompleted {
			continue
		}
		if img.StoragePathProcessed == nil || *img.StoragePathProcessed == "" {
			result.MissingFiles = append(result.MissingFiles,
				fmt.Sprintf("(no processed path recorded for %s)", img.OriginalFilename))
			continue
		}
		expectedProcessed[*img.StoragePathProcessed] = true
		if !processedKeys[*img.StoragePathProcessed] {
			result.MissingFiles = append(result.MissingFiles, *img.StoragePathProcessed)
		}
	}

	for _, f := range processed {
		if isSidecar(f.Name) {
			continue
		}
		if !expectedProcessed[f.Path] {
			result.ExtraFiles = append(result.ExtraFiles, f.Path)
		}
	}

	if len(result.MissingOriginal) > 0 {
		result.Issues = append(result.Issues,
			fmt.Sprintf("%d original files missing from storage", len(result.MissingOriginal)))
	}
	if len(result.MissingFiles) > 0 {
		result.Issues = append(result.Issues,
			fmt.Sprintf("%d processed files missing from storage", len(result.MissingFiles)))
	}
	if len(result.ExtraFiles) > 0 {
		result.Issues = append(result.Issues,
			fmt.Sprintf("%d unexpected files in the processed folder", len(result.ExtraFiles)))
	}

	result.Passed = result.FolderValid &&
		len(result.MissingOriginal) == 0 &&
		len(result.MissingFiles) == 0
	return result, nil
}

// VerifyImageProcessing confirms a single processed file really carries
// embedded metadata. The processed file must be strictly larger than the
// original (the packet adds bytes) and must contain a parseable XMP packet.
func (v *StorageVerifier) VerifyImageProcessing(ctx context.Context, originalKey, processedKey string) (bool, error) {
	original, err := v.storage.Stat(ctx, originalKey)
	if err != nil {
		return false, fmt.Errorf("stat original: %w", err)
	}
	processedInfo, err := v.storage.Stat(ctx, processedKey)
	if err != nil {
		return false, fmt.Errorf("stat processed: %w", err)
	}
	if processedInfo.Size <= original.Size {
		return false, nil
	}

	data, err := v.storage.Download(ctx, processedKey)
	if err != nil {
		return false, fmt.Errorf("download processed: %w", err)
	}
	_, ok := adapter.ExtractXMPPacket(data)
	return ok, nil
}

// folderNameValid checks the {batchId}_{userId} convention: exactly two
// non-empty IDs joined by a single underscore.
func folderNameValid(folder string) bool {
	if strings.ContainsAny(folder, "/ ") {
		return false
	}
	parts := strings.Split(folder, "_")
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}

func isSidecar(name string) bool {
	for _, suffix := range sidecarSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
