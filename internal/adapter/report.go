package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/orbitlabs/orbit-api/internal/client"
	"github.com/orbitlabs/orbit-api/internal/model"
)

// GenerateReport renders an analysis in one of the supported formats.
// Rendering is pure; unknown formats fall back to the simple form.
func GenerateReport(img *model.Image, analysis *model.ImageAnalysis, format model.ReportFormat) string {
	switch format {
	case model.ReportDetailed:
		return detailedReport(img, analysis)
	case model.ReportJSON:
		return jsonReport(img, analysis)
	case model.ReportMarketing:
		return marketingReport(analysis)
	case model.ReportTechnical:
		return technicalReport(img, analysis)
	default:
		return simpleReport(img, analysis)
	}
}

func detailedReport(img *model.Image, a *model.ImageAnalysis) string {
	var b strings.Builder
	meta := a.Metadata

	fmt.Fprintf(&b, "IMAGE ANALYSIS REPORT\n")
	fmt.Fprintf(&b, "=====================\n\n")
	fmt.Fprintf(&b, "File: %s\n", img.OriginalFilename)
	fmt.Fprintf(&b, "Analysis type: %s\n", a.AnalysisType)
	fmt.Fprintf(&b, "Model: %s\n", a.ModelVersion)
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", a.Confidence*100)
	fmt.Fprintf(&b, "Analyzed at: %s\n\n", a.Timestamp.Format(time.RFC3339))

	fmt.Fprintf(&b, "Title: %s\n", meta.Title)
	fmt.Fprintf(&b, "Description: %s\n\n", meta.Description)

	if len(meta.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(meta.Tags, ", "))
	}
	if len(meta.Colors) > 0 {
		fmt.Fprintf(&b, "Colors: %s\n", strings.Join(meta.Colors, ", "))
	}
	if len(meta.Objects) > 0 {
		fmt.Fprintf(&b, "Objects: %s\n", strings.Join(meta.Objects, ", "))
	}

	fmt.Fprintf(&b, "\nScene\n-----\n")
	fmt.Fprintf(&b, "Setting: %s\nLighting: %s\nMood: %s\nComposition: %s\n",
		meta.Scene.Setting, meta.Scene.Lighting, meta.Scene.Mood, meta.Scene.Composition)

	fmt.Fprintf(&b, "\nTechnical\n---------\n")
	fmt.Fprintf(&b, "Resolution: %s\nQuality: %s\nFormat: %s\n",
		meta.Technical.Resolution, meta.Technical.Quality, meta.Technical.Format)

	if a.RawText != "" {
		fmt.Fprintf(&b, "\nUnparsed model output\n---------------------\n%s\n", a.RawText)
	}
	return b.String()
}

func simpleReport(img *model.Image, a *model.ImageAnalysis) string {
	meta := a.Metadata
	return fmt.Sprintf("%s\n%s\n\n%s\nTags: %s\n",
		img.OriginalFilename, meta.Title, meta.Description, strings.Join(meta.Tags, ", "))
}

func jsonReport(img *model.Image, a *model.ImageAnalysis) string {
	payload := struct {
		Filename string               `json:"filename"`
		Analysis *model.ImageAnalysis `json:"analysis"`
	}{Filename: img.OriginalFilename, Analysis: a}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

func marketingReport(a *model.ImageAnalysis) string {
	var b strings.Builder
	meta := a.Metadata

	fmt.Fprintf(&b, "%s\n\n", meta.Title)
	fmt.Fprintf(&b, "%s\n\n", meta.Description)
	if meta.Scene.Mood != "" {
		fmt.Fprintf(&b, "Mood: %s\n", meta.Scene.Mood)
	}
	if len(meta.Tags) > 0 {
		hashtags := make([]string, 0, len(meta.Tags))
		for _, t := range meta.Tags {
			hashtags = append(hashtags, "#"+strings.ReplaceAll(strings.ToLower(t), " ", ""))
		}
		fmt.Fprintf(&b, "%s\n", strings.Join(hashtags, " "))
	}
	return b.String()
}

func technicalReport(img *model.Image, a *model.ImageAnalysis) string {
	var b strings.Builder
	tech := a.Metadata.Technical

	fmt.Fprintf(&b, "File: %s\n", img.OriginalFilename)
	fmt.Fprintf(&b, "MIME type: %s\n", img.MimeType)
	fmt.Fprintf(&b, "Size: %d bytes\n", img.FileSize)
	fmt.Fprintf(&b, "Resolution: %s\n", tech.Resolution)
	fmt.Fprintf(&b, "Quality: %s\n", tech.Quality)
	fmt.Fprintf(&b, "Format: %s\n", tech.Format)
	fmt.Fprintf(&b, "Model: %s\n", a.ModelVersion)
	fmt.Fprintf(&b, "Confidence: %.2f\n", a.Confidence)
	return b.String()
}

// ReportAdapter writes report sidecars next to the processed image.
type ReportAdapter struct {
	uploads *StorageAdapter
}

func NewReportAdapter(storage client.StorageClient, metrics *Metrics) *ReportAdapter {
	return &ReportAdapter{uploads: NewStorageAdapter(storage, metrics)}
}

// HealthCheck reports whether the adapter can serve a run.
func (r *ReportAdapter) HealthCheck(ctx context.Context) bool {
	return r.uploads != nil && r.uploads.storage != nil
}

// WriteSidecars uploads the standard per-image report files: a detailed
// report, a technical summary, and marketing copy. All three go through one
// batch upload so a storage failure leaves no half-written sidecar set
// unreported.
func (r *ReportAdapter) WriteSidecars(ctx context.Context, folder string, img *model.Image, analysis *model.ImageAnalysis) error {
	base := strings.TrimSuffix(img.OriginalFilename, path.Ext(img.OriginalFilename))
	items := []UploadItem{
		{
			Key:     fmt.Sprintf("%s/processed/%s_report.txt", folder, base),
			Content: GenerateReport(img, analysis, model.ReportDetailed),
		},
		{
			Key:     fmt.Sprintf("%s/processed/%s_technical.txt", folder, base),
			Content: GenerateReport(img, analysis, model.ReportTechnical),
		},
		{
			Key:     fmt.Sprintf("%s/processed/%s_marketing.txt", folder, base),
			Content: GenerateReport(img, analysis, model.ReportMarketing),
		},
	}

	_, err := r.uploads.BatchUpload(ctx, items)
	return err
}
