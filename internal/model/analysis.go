package model

import "time"

// ImageAnalysis is the structured payload extracted by the AI model.
// When the model response cannot be parsed as JSON, RawText carries the
// unparsed response and Metadata is left mostly empty.
type ImageAnalysis struct {
	AnalysisType AnalysisType     `json:"analysis_type"`
	Metadata     AnalysisMetadata `json:"metadata"`
	Confidence   float64          `json:"confidence"`
	ModelVersion string           `json:"model_version"`
	RawText      string           `json:"raw_text,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

type AnalysisMetadata struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Tags        []string      `json:"tags"`
	Colors      []string      `json:"colors"`
	Objects     []string      `json:"objects"`
	Scene       SceneInfo     `json:"scene"`
	Technical   TechnicalInfo `json:"technical"`
}

type SceneInfo struct {
	Setting     string `json:"setting"`
	Lighting    string `json:"lighting"`
	Mood        string `json:"mood"`
	Composition string `json:"composition"`
}

type TechnicalInfo struct {
	Resolution string `json:"resolution"`
	Quality    string `json:"quality"`
	Format     string `json:"format"`
}
