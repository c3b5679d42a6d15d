package adapter

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/orbitlabs/orbit-api/internal/client"
	"github.com/orbitlabs/orbit-api/internal/retry"
)

// fakeStorage records uploads and serves canned signed URLs.
type fakeStorage struct {
	uploads  map[string]string // key -> content type
	failSign bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploads: make(map[string]string)}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	f.uploads[key] = contentType
	return "https://cdn.example/" + key, nil
}

func (f *fakeStorage) Download(ctx context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeStorage) List(ctx context.Context, prefix string) ([]client.FileInfo, error) {
	return nil, nil
}

func (f *fakeStorage) Stat(ctx context.Context, key string) (*client.FileInfo, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error { return nil }

func (f *fakeStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if f.failSign {
		return "", fmt.Errorf("presign failed")
	}
	return fmt.Sprintf("https://signed.example/%s?ttl=%d", key, int(expiry.Seconds())), nil
}

func (f *fakeStorage) GetPublicURL(key string) string { return "https://cdn.example/" + key }

func TestBatchUpload(t *testing.T) {
	storage := newFakeStorage()
	s := NewStorageAdapter(storage, NewMetrics())

	urls, err := s.BatchUpload(context.Background(), []UploadItem{
		{Key: "order/a.txt", Content: "hello"},
		{Key: "order/b.bin", Content: "base64:aGVsbG8=", ContentType: "image/jpeg"},
	})
	if err != nil {
		t.Fatalf("batch upload: %v", err)
	}
	if len(urls) != 2 || urls["order/a.txt"] != "https://cdn.example/order/a.txt" {
		t.Errorf("urls = %v", urls)
	}
	if storage.uploads["order/b.bin"] != "image/jpeg" {
		t.Errorf("content type = %q", storage.uploads["order/b.bin"])
	}
}

func TestBatchUploadRejectsEmptyAndOversized(t *testing.T) {
	s := NewStorageAdapter(newFakeStorage(), NewMetrics())

	if _, err := s.BatchUpload(context.Background(), nil); err == nil {
		t.Error("empty batch must be rejected")
	}

	items := make([]UploadItem, maxBatchUpload+1)
	for i := range items {
		items[i] = UploadItem{Key: fmt.Sprintf("k%d", i), Content: "x"}
	}
	_, err := s.BatchUpload(context.Background(), items)
	if err == nil {
		t.Fatal("oversized batch must be rejected")
	}
	if retry.Classify(err).Category != retry.CategoryValidation {
		t.Errorf("category = %s", retry.Classify(err).Category)
	}
}

func TestSignedURLsDefaultExpiry(t *testing.T) {
	s := NewStorageAdapter(newFakeStorage(), NewMetrics())

	urls, err := s.SignedURLs(context.Background(), []string{"order/a.jpg"}, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !strings.HasSuffix(urls["order/a.jpg"], "?ttl=3600") {
		t.Errorf("zero expiry should default to one hour, got %q", urls["order/a.jpg"])
	}
}

func TestSignedURLsTooManyKeys(t *testing.T) {
	s := NewStorageAdapter(newFakeStorage(), NewMetrics())

	keys := make([]string, maxSignedURLs+1)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}
	if _, err := s.SignedURLs(context.Background(), keys, time.Minute); err == nil {
		t.Error("oversized key list must be rejected")
	}
}

type fakeAI struct{ configured bool }

func (f fakeAI) GenerateContent(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (f fakeAI) Model() string { return "fake" }

func (f fakeAI) IsConfigured() bool { return f.configured }

func TestAdapterHealthChecks(t *testing.T) {
	ctx := context.Background()
	storage := newFakeStorage()
	metrics := NewMetrics()

	if !NewAnalysisAdapter(storage, fakeAI{configured: true}, metrics, false).HealthCheck(ctx) {
		t.Error("configured analysis adapter should be healthy")
	}
	if NewAnalysisAdapter(storage, fakeAI{}, metrics, false).HealthCheck(ctx) {
		t.Error("analysis without a model key must report unhealthy")
	}
	if !NewAnalysisAdapter(storage, fakeAI{}, metrics, true).HealthCheck(ctx) {
		t.Error("mock mode needs no model key")
	}
	if NewAnalysisAdapter(nil, fakeAI{configured: true}, metrics, true).HealthCheck(ctx) {
		t.Error("analysis without storage must report unhealthy")
	}

	if !NewMetadataAdapter(storage, metrics, 95).HealthCheck(ctx) {
		t.Error("metadata adapter with storage should be healthy")
	}
	if NewMetadataAdapter(nil, metrics, 95).HealthCheck(ctx) {
		t.Error("metadata adapter without storage must report unhealthy")
	}

	if !NewReportAdapter(storage, metrics).HealthCheck(ctx) {
		t.Error("report adapter with storage should be healthy")
	}
	if NewReportAdapter(nil, metrics).HealthCheck(ctx) {
		t.Error("report adapter without storage must report unhealthy")
	}
}

func TestSignedURLsFailure(t *testing.T) {
	storage := newFakeStorage()
	storage.failSign = true
	s := NewStorageAdapter(storage, NewMetrics())

	_, err := s.SignedURLs(context.Background(), []string{"order/a.jpg"}, time.Minute)
	if err == nil {
		t.Fatal("expected error")
	}
	if retry.Classify(err).Category != retry.CategoryStorage {
		t.Errorf("category = %s", retry.Classify(err).Category)
	}
}
