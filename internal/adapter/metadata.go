package adapter

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/orbitlabs/orbit-api/internal/client"
	"github.com/orbitlabs/orbit-api/internal/model"
	"github.com/orbitlabs/orbit-api/internal/retry"
)

// MetadataAdapter embeds the extracted analysis into the image file itself
// and writes the processed copy next to the original in object storage.
type MetadataAdapter struct {
	storage client.StorageClient
	metrics *Metrics
	quality int
}

func NewMetadataAdapter(storage client.StorageClient, metrics *Metrics, quality int) *MetadataAdapter {
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	return &MetadataAdapter{storage: storage, metrics: metrics, quality: quality}
}

// HealthCheck reports whether the adapter can serve a run.
func (m *MetadataAdapter) HealthCheck(ctx context.Context) bool {
	return m.storage != nil
}

// Embed produces the processed image: the original with an XMP packet
// embedded as a JPEG APP1 segment. Non-JPEG sources are re-encoded to JPEG
// first. Returns the storage key of the processed file. A sidecar .xmp file
// with the bare packet is uploaded alongside for tools that cannot read
// embedded metadata.
func (m *MetadataAdapter) Embed(ctx context.Context, folder string, img *model.Image, analysis *model.ImageAnalysis) (string, error) {
	start := time.Now()
	data, err := m.storage.Download(ctx, img.StoragePathOriginal)
	m.metrics.Record("storage_download", time.Since(start), err)
	if err != nil {
		return "", retry.Wrap(retry.CategoryStorage, err, fmt.Sprintf("download %s", img.StoragePathOriginal))
	}

	if !isJPEG(data) {
		data, err = m.reencodeJPEG(data)
		if err != nil {
			return "", retry.Wrap(retry.CategoryMetadata, err, fmt.Sprintf("re-encode %s", img.OriginalFilename))
		}
	}

	packet := BuildXMPPacket(analysis)
	embedded, err := EmbedXMPJPEG(data, packet)
	if err != nil {
		return "", retry.Wrap(retry.CategoryMetadata, err, fmt.Sprintf("embed metadata into %s", img.OriginalFilename))
	}

	base := strings.TrimSuffix(img.OriginalFilename, path.Ext(img.OriginalFilename))
	processedKey := fmt.Sprintf("%s/processed/%s.jpg", folder, base)

	upStart := time.Now()
	_, err = m.storage.Upload(ctx, processedKey, bytes.NewReader(embedded), "image/jpeg")
	m.metrics.Record("storage_upload", time.Since(upStart), err)
	if err != nil {
		return "", retry.Wrap(retry.CategoryStorage, err, fmt.Sprintf("upload %s", processedKey))
	}

	sidecarKey := fmt.Sprintf("%s/processed/%s.xmp", folder, base)
	sideStart := time.Now()
	_, err = m.storage.Upload(ctx, sidecarKey, strings.NewReader(packet), "application/rdf+xml")
	m.metrics.Record("storage_upload", time.Since(sideStart), err)
	if err != nil {
		return "", retry.Wrap(retry.CategoryStorage, err, fmt.Sprintf("upload %s", sidecarKey))
	}

	return processedKey, nil
}

func (m *MetadataAdapter) reencodeJPEG(data []byte) ([]byte, error) {
	decoded, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, decoded, imaging.JPEG, imaging.JPEGQuality(m.quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func isJPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
}
