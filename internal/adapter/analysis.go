package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/orbitlabs/orbit-api/internal/client"
	"github.com/orbitlabs/orbit-api/internal/model"
	"github.com/orbitlabs/orbit-api/internal/retry"
)

// maxImageBytes caps what we are willing to download and send to the model.
const maxImageBytes = 20 << 20

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// AIClient is the slice of the Gemini client the analysis adapter needs.
type AIClient interface {
	GenerateContent(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error)
	Model() string
	IsConfigured() bool
}

const productPrompt = `Analyze this product photo for an e-commerce listing.
Respond with ONLY a JSON object, no prose, in this exact shape:
{
  "metadata": {
    "title": "short product title",
    "description": "2-3 sentence listing description",
    "tags": ["keyword", ...],
    "colors": ["dominant color", ...],
    "objects": ["visible object", ...],
    "scene": {"setting": "", "lighting": "", "mood": "", "composition": ""},
    "technical": {"resolution": "", "quality": "", "format": ""}
  },
  "confidence": 0.0
}`

const lifestylePrompt = `Analyze this lifestyle photo featuring a product in context.
Respond with ONLY a JSON object, no prose, in this exact shape:
{
  "metadata": {
    "title": "short evocative title",
    "description": "2-3 sentence description of the scene and product role",
    "tags": ["keyword", ...],
    "colors": ["dominant color", ...],
    "objects": ["visible object", ...],
    "scene": {"setting": "", "lighting": "", "mood": "", "composition": ""},
    "technical": {"resolution": "", "quality": "", "format": ""}
  },
  "confidence": 0.0
}`

const detectTypePrompt = `Classify this photo as either a plain product shot or a
lifestyle shot showing the product in use. Respond with exactly one word:
"product" or "lifestyle".`

// AnalysisAdapter downloads an image, validates it, and extracts structured
// metadata through the vision model.
type AnalysisAdapter struct {
	storage client.StorageClient
	ai      AIClient
	metrics *Metrics
	mock    bool
}

func NewAnalysisAdapter(storage client.StorageClient, ai AIClient, metrics *Metrics, mock bool) *AnalysisAdapter {
	return &AnalysisAdapter{storage: storage, ai: ai, metrics: metrics, mock: mock}
}

// HealthCheck reports whether the adapter can serve a run. Mock mode needs
// nothing beyond storage; real analysis additionally needs a configured
// model client.
func (a *AnalysisAdapter) HealthCheck(ctx context.Context) bool {
	if a.storage == nil {
		return false
	}
	if a.mock {
		return true
	}
	return a.ai != nil && a.ai.IsConfigured()
}

// Analyze runs the full analysis step for one image. The returned analysis
// is always non-nil on success, with RawText populated when the model
// response could not be parsed as JSON.
func (a *AnalysisAdapter) Analyze(ctx context.Context, img *model.Image, analysisType model.AnalysisType) (*model.ImageAnalysis, error) {
	start := time.Now()

	data, err := a.storage.Download(ctx, img.StoragePathOriginal)
	a.metrics.Record("storage_download", time.Since(start), err)
	if err != nil {
		return nil, retry.Wrap(retry.CategoryStorage, err, fmt.Sprintf("download %s", img.StoragePathOriginal))
	}

	resolution, err := a.validate(img, data)
	if err != nil {
		return nil, err
	}

	if a.mock {
		return mockAnalysis(img, analysisType, resolution), nil
	}

	if analysisType == "" {
		analysisType, err = a.detectType(ctx, data, img.MimeType)
		if err != nil {
			return nil, err
		}
	}

	prompt := productPrompt
	if analysisType == model.AnalysisLifestyle {
		prompt = lifestylePrompt
	}

	aiStart := time.Now()
	text, err := a.ai.GenerateContent(ctx, prompt, data, img.MimeType)
	a.metrics.Record("gemini_analyze", time.Since(aiStart), err)
	if err != nil {
		return nil, retry.Wrap(retry.CategoryAIAPI, err, fmt.Sprintf("analyze %s", img.OriginalFilename))
	}

	analysis := parseAnalysisResponse(text)
	analysis.AnalysisType = analysisType
	analysis.ModelVersion = a.ai.Model()
	analysis.Timestamp = time.Now().UTC()
	if analysis.Metadata.Technical.Resolution == "" {
		analysis.Metadata.Technical.Resolution = resolution
	}
	if analysis.Metadata.Title == "" {
		analysis.Metadata.Title = strings.TrimSuffix(img.OriginalFilename, path.Ext(img.OriginalFilename))
	}
	return analysis, nil
}

// validate rejects oversized, mistyped, or undecodable uploads before any
// model tokens are spent on them. Returns the decoded resolution.
func (a *AnalysisAdapter) validate(img *model.Image, data []byte) (string, error) {
	if len(data) == 0 {
		return "", retry.New(retry.CategoryValidation, "validation failed: %s is empty", img.OriginalFilename)
	}
	if len(data) > maxImageBytes {
		return "", retry.New(retry.CategoryValidation, "validation failed: %s is too large (%d bytes)", img.OriginalFilename, len(data))
	}
	if !allowedMimeTypes[img.MimeType] {
		return "", retry.New(retry.CategoryValidation, "validation failed: unsupported format %s for %s", img.MimeType, img.OriginalFilename)
	}

	decoded, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", retry.Wrap(retry.CategoryValidation, err, fmt.Sprintf("validation failed: cannot decode %s", img.OriginalFilename))
	}
	bounds := decoded.Bounds()
	return fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()), nil
}

func (a *AnalysisAdapter) detectType(ctx context.Context, data []byte, mimeType string) (model.AnalysisType, error) {
	start := time.Now()
	text, err := a.ai.GenerateContent(ctx, detectTypePrompt, data, mimeType)
	a.metrics.Record("gemini_detect_type", time.Since(start), err)
	if err != nil {
		return "", retry.Wrap(retry.CategoryAIAPI, err, "detect analysis type")
	}
	if strings.Contains(strings.ToLower(text), "lifestyle") {
		return model.AnalysisLifestyle, nil
	}
	return model.AnalysisProduct, nil
}

// parseAnalysisResponse tolerates markdown fences and surrounding prose; on
// unparseable responses the raw text is preserved instead of being dropped.
func parseAnalysisResponse(text string) *model.ImageAnalysis {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		var parsed struct {
			Metadata   model.AnalysisMetadata `json:"metadata"`
			Confidence float64                `json:"confidence"`
		}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &parsed); err == nil {
			return &model.ImageAnalysis{
				Metadata:   parsed.Metadata,
				Confidence: parsed.Confidence,
			}
		}
	}

	return &model.ImageAnalysis{
		Confidence: 0,
		RawText:    text,
	}
}

func mockAnalysis(img *model.Image, analysisType model.AnalysisType, resolution string) *model.ImageAnalysis {
	if analysisType == "" {
		analysisType = model.AnalysisProduct
	}
	name := strings.TrimSuffix(img.OriginalFilename, path.Ext(img.OriginalFilename))
	return &model.ImageAnalysis{
		AnalysisType: analysisType,
		Metadata: model.AnalysisMetadata{
			Title:       name,
			Description: "Mock analysis for " + img.OriginalFilename,
			Tags:        []string{"mock", string(analysisType)},
			Colors:      []string{"gray"},
			Objects:     []string{"product"},
			Scene: model.SceneInfo{
				Setting: "studio", Lighting: "soft", Mood: "neutral", Composition: "centered",
			},
			Technical: model.TechnicalInfo{
				Resolution: resolution, Quality: "high", Format: img.MimeType,
			},
		},
		Confidence:   0.95,
		ModelVersion: "mock",
		Timestamp:    time.Now().UTC(),
	}
}
