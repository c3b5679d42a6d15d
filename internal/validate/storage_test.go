package validate

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/orbitlabs/orbit-api/internal/adapter"
	"github.com/orbitlabs/orbit-api/internal/client"
	"github.com/orbitlabs/orbit-api/internal/model"
)

// fakeStorage is an in-memory StorageClient for verifier tests.
type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.objects[key] = data
	return "https://storage.test/" + key, nil
}

func (f *fakeStorage) Download(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("download %s: not found", key)
	}
	return data, nil
}

func (f *fakeStorage) List(ctx context.Context, prefix string) ([]client.FileInfo, error) {
	var files []client.FileInfo
	for key, data := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		name := key
		if idx := strings.LastIndex(key, "/"); idx >= 0 {
			name = key[idx+1:]
		}
		files = append(files, client.FileInfo{Name: name, Path: key, Size: int64(len(data))})
	}
	return files, nil
}

func (f *fakeStorage) Stat(ctx context.Context, key string) (*client.FileInfo, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("stat %s: not found", key)
	}
	name := key
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		name = key[idx+1:]
	}
	return &client.FileInfo{Name: name, Path: key, Size: int64(len(data))}, nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.test/signed/" + key, nil
}

func (f *fakeStorage) GetPublicURL(key string) string {
	return "https://storage.test/" + key
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := imaging.New(16, 16, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func orderFixture() *model.Order {
	return &model.Order{ID: "order-1", UserID: "user-9", BatchID: "batch-7"}
}

func TestVerifyOrderAllPresent(t *testing.T) {
	storage := newFakeStorage()
	storage.objects["batch-7_user-9/original/a.jpg"] = []byte("orig")
	storage.objects["batch-7_user-9/processed/a.jpg"] = []byte("processed-bigger")
	storage.objects["batch-7_user-9/processed/a.xmp"] = []byte("<packet/>")
	storage.objects["batch-7_user-9/processed/a_report.txt"] = []byte("report")

	images := []model.Image{{
		ID:                   "a",
		OriginalFilename:     "a.jpg",
		StoragePathOriginal:  "batch-7_user-9/original/a.jpg",
		StoragePathProcessed: strPtr("batch-7_user-9/processed/a.jpg"),
		ProcessingStatus:     model.ImageCompleted,
	}}

	v := NewStorageVerifier(storage)
	result, err := v.VerifyOrder(context.Background(), orderFixture(), images)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Passed || !result.FolderValid {
		t.Errorf("expected pass, got %+v", result)
	}
	if result.ProcessedCount != 1 {
		t.Errorf("sidecars must not count as processed files, count = %d", result.ProcessedCount)
	}
	if len(result.ExtraFiles) != 0 {
		t.Errorf("unexpected extras: %v", result.ExtraFiles)
	}
}

func TestVerifyOrderMissingProcessedFile(t *testing.T) {
	storage := newFakeStorage()
	storage.objects["batch-7_user-9/original/a.jpg"] = []byte("orig")

	images := []model.Image{{
		ID:                   "a",
		OriginalFilename:     "a.jpg",
		StoragePathOriginal:  "batch-7_user-9/original/a.jpg",
		StoragePathProcessed: strPtr("batch-7_user-9/processed/a.jpg"),
		ProcessingStatus:     model.ImageCompleted,
	}}

	v := NewStorageVerifier(storage)
	result, err := v.VerifyOrder(context.Background(), orderFixture(), images)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Passed {
		t.Error("missing processed file must fail verification")
	}
	if len(result.MissingFiles) != 1 {
		t.Errorf("missing files = %v", result.MissingFiles)
	}
}

func TestVerifyOrderExtraProcessedFile(t *testing.T) {
	storage := newFakeStorage()
	storage.objects["batch-7_user-9/original/a.jpg"] = []byte("orig")
	storage.objects["batch-7_user-9/processed/stray.jpg"] = []byte("stray")

	images := []model.Image{{
		ID:                  "a",
		OriginalFilename:    "a.jpg",
		StoragePathOriginal: "batch-7_user-9/original/a.jpg",
		ProcessingStatus:    model.ImagePending,
	}}

	v := NewStorageVerifier(storage)
	result, err := v.VerifyOrder(context.Background(), orderFixture(), images)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(result.ExtraFiles) != 1 {
		t.Errorf("extra files = %v", result.ExtraFiles)
	}
	// extras are reported but do not fail the run
	if !result.Passed {
		t.Error("extras alone should not fail verification")
	}
}

func TestFolderNameConvention(t *testing.T) {
	cases := map[string]bool{
		"batch-7_user-9": true,
		"order-1_user-9": true,
		"nounderscore":   false,
		"too_many_parts": false,
		"_user":          false,
		"batch_":         false,
		"a/b_c":          false,
	}
	for folder, want := range cases {
		if got := folderNameValid(folder); got != want {
			t.Errorf("folderNameValid(%q) = %v, want %v", folder, got, want)
		}
	}
}

func TestVerifyImageProcessingEmbeddedFile(t *testing.T) {
	storage := newFakeStorage()
	original := jpegBytes(t)

	embedded, err := adapter.EmbedXMPJPEG(original, "<x:xmpmeta/>")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	storage.objects["f/original/a.jpg"] = original
	storage.objects["f/processed/a.jpg"] = embedded

	v := NewStorageVerifier(storage)
	ok, err := v.VerifyImageProcessing(context.Background(), "f/original/a.jpg", "f/processed/a.jpg")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("embedded file should verify")
	}
}

func TestVerifyImageProcessingEqualSizeFails(t *testing.T) {
	storage := newFakeStorage()
	original := jpegBytes(t)

	// a byte-identical copy has no embedded packet and the same size
	storage.objects["f/original/a.jpg"] = original
	storage.objects["f/processed/a.jpg"] = original

	v := NewStorageVerifier(storage)
	ok, err := v.VerifyImageProcessing(context.Background(), "f/original/a.jpg", "f/processed/a.jpg")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Error("an unmodified copy must not verify")
	}
}

func TestVerifyImageProcessingLargerButNoPacket(t *testing.T) {
	storage := newFakeStorage()
	original := jpegBytes(t)
	padded := append(append([]byte{}, original...), make([]byte, 64)...)

	storage.objects["f/original/a.jpg"] = original
	storage.objects["f/processed/a.jpg"] = padded

	v := NewStorageVerifier(storage)
	ok, err := v.VerifyImageProcessing(context.Background(), "f/original/a.jpg", "f/processed/a.jpg")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Error("size growth without an XMP packet must not verify")
	}
}
