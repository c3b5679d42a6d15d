package adapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/orbitlabs/orbit-api/internal/client"
	"github.com/orbitlabs/orbit-api/internal/retry"
)

const (
	maxBatchUpload = 20
	maxSignedURLs  = 50
)

// UploadItem is one file in a batch upload request. Content is either raw
// text or base64 data carrying a "data:<mime>;base64," or "base64:" prefix.
type UploadItem struct {
	Key         string `json:"key"`
	Content     string `json:"content"`
	ContentType string `json:"contentType,omitempty"`
}

// StorageAdapter bundles multi-object storage operations used by the debug
// and recovery paths.
type StorageAdapter struct {
	storage client.StorageClient
	metrics *Metrics
}

func NewStorageAdapter(storage client.StorageClient, metrics *Metrics) *StorageAdapter {
	return &StorageAdapter{storage: storage, metrics: metrics}
}

// BatchUpload stores up to maxBatchUpload items and returns their public
// URLs keyed by storage key. Oversized batches are rejected outright rather
// than partially applied.
func (s *StorageAdapter) BatchUpload(ctx context.Context, items []UploadItem) (map[string]string, error) {
	if len(items) == 0 {
		return nil, retry.New(retry.CategoryValidation, "validation failed: empty upload batch")
	}
	if len(items) > maxBatchUpload {
		return nil, retry.New(retry.CategoryValidation, "validation failed: batch of %d exceeds limit of %d", len(items), maxBatchUpload)
	}

	urls := make(map[string]string, len(items))
	for _, item := range items {
		data, contentType, err := decodeContent(item)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		url, err := s.storage.Upload(ctx, item.Key, bytes.NewReader(data), contentType)
		s.metrics.Record("storage_upload", time.Since(start), err)
		if err != nil {
			return nil, retry.Wrap(retry.CategoryStorage, err, fmt.Sprintf("upload %s", item.Key))
		}
		urls[item.Key] = url
	}
	return urls, nil
}

// SignedURLs generates presigned download URLs for up to maxSignedURLs keys.
func (s *StorageAdapter) SignedURLs(ctx context.Context, keys []string, expiry time.Duration) (map[string]string, error) {
	if len(keys) > maxSignedURLs {
		return nil, retry.New(retry.CategoryValidation, "validation failed: %d keys exceeds limit of %d", len(keys), maxSignedURLs)
	}
	if expiry <= 0 {
		expiry = time.Hour
	}

	urls := make(map[string]string, len(keys))
	for _, key := range keys {
		start := time.Now()
		url, err := s.storage.GetSignedURL(ctx, key, expiry)
		s.metrics.Record("storage_sign", time.Since(start), err)
		if err != nil {
			return nil, retry.Wrap(retry.CategoryStorage, err, fmt.Sprintf("sign %s", key))
		}
		urls[key] = url
	}
	return urls, nil
}

// decodeContent interprets the item payload. Data URIs and the bare
// "base64:" prefix are decoded; anything else is treated as UTF-8 text.
func decodeContent(item UploadItem) ([]byte, string, error) {
	contentType := item.ContentType
	content := item.Content

	switch {
	case strings.HasPrefix(content, "data:"):
		rest := content[len("data:"):]
		sep := strings.Index(rest, ";base64,")
		if sep < 0 {
			return nil, "", retry.New(retry.CategoryValidation, "validation failed: malformed data URI for %s", item.Key)
		}
		if contentType == "" {
			contentType = rest[:sep]
		}
		data, err := base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
		if err != nil {
			return nil, "", retry.Wrap(retry.CategoryValidation, err, fmt.Sprintf("validation failed: bad base64 for %s", item.Key))
		}
		return data, contentType, nil

	case strings.HasPrefix(content, "base64:"):
		data, err := base64.StdEncoding.DecodeString(content[len("base64:"):])
		if err != nil {
			return nil, "", retry.Wrap(retry.CategoryValidation, err, fmt.Sprintf("validation failed: bad base64 for %s", item.Key))
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return data, contentType, nil

	default:
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
		return []byte(content), contentType, nil
	}
}
