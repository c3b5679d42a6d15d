package adapter

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/orbitlabs/orbit-api/internal/model"
)

func imageFixture() *model.Image {
	return &model.Image{
		ID:               "img-1",
		OrderID:          "order-1",
		OriginalFilename: "mug_front.png",
		MimeType:         "image/png",
		FileSize:         123456,
	}
}

func TestDetailedReport(t *testing.T) {
	out := GenerateReport(imageFixture(), analysisFixture(), model.ReportDetailed)

	for _, want := range []string{
		"IMAGE ANALYSIS REPORT",
		"File: mug_front.png",
		"Title: Ceramic Mug <Blue>",
		"Tags: mug, ceramic, kitchen",
		"Confidence: 92%",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("detailed report missing %q", want)
		}
	}
}

func TestJSONReportIsValidJSON(t *testing.T) {
	out := GenerateReport(imageFixture(), analysisFixture(), model.ReportJSON)

	var decoded struct {
		Filename string               `json:"filename"`
		Analysis *model.ImageAnalysis `json:"analysis"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if decoded.Filename != "mug_front.png" {
		t.Errorf("filename = %q", decoded.Filename)
	}
	if decoded.Analysis.Confidence != 0.92 {
		t.Errorf("confidence = %v", decoded.Analysis.Confidence)
	}
}

func TestMarketingReportHashtags(t *testing.T) {
	out := GenerateReport(imageFixture(), analysisFixture(), model.ReportMarketing)
	if !strings.Contains(out, "#mug #ceramic #kitchen") {
		t.Errorf("marketing report missing hashtags:\n%s", out)
	}
}

func TestTechnicalReport(t *testing.T) {
	out := GenerateReport(imageFixture(), analysisFixture(), model.ReportTechnical)
	for _, want := range []string{"MIME type: image/png", "Size: 123456 bytes", "Confidence: 0.92"} {
		if !strings.Contains(out, want) {
			t.Errorf("technical report missing %q", want)
		}
	}
}

func TestUnknownFormatFallsBackToSimple(t *testing.T) {
	simple := GenerateReport(imageFixture(), analysisFixture(), model.ReportSimple)
	unknown := GenerateReport(imageFixture(), analysisFixture(), model.ReportFormat("bogus"))
	if simple != unknown {
		t.Error("unknown format should render the simple report")
	}
}

func TestParseAnalysisResponseWithFences(t *testing.T) {
	text := "```json\n{\"metadata\":{\"title\":\"A Mug\",\"tags\":[\"mug\"]},\"confidence\":0.8}\n```"
	a := parseAnalysisResponse(text)
	if a.Metadata.Title != "A Mug" || a.Confidence != 0.8 {
		t.Errorf("parsed = %+v", a)
	}
	if a.RawText != "" {
		t.Error("parsed responses should not keep raw text")
	}
}

func TestParseAnalysisResponseFallback(t *testing.T) {
	text := "I could not produce JSON, sorry."
	a := parseAnalysisResponse(text)
	if a.RawText != text {
		t.Errorf("fallback should preserve raw text, got %q", a.RawText)
	}
}

func TestDecodeContentDataURI(t *testing.T) {
	item := UploadItem{Key: "a.txt", Content: "data:text/plain;base64,aGVsbG8="}
	data, contentType, err := decodeContent(item)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(data) != "hello" || contentType != "text/plain" {
		t.Errorf("got %q / %q", data, contentType)
	}
}

func TestDecodeContentBase64Prefix(t *testing.T) {
	item := UploadItem{Key: "b.bin", Content: "base64:aGVsbG8="}
	data, contentType, err := decodeContent(item)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(data) != "hello" || contentType != "application/octet-stream" {
		t.Errorf("got %q / %q", data, contentType)
	}
}

func TestDecodeContentPlainText(t *testing.T) {
	item := UploadItem{Key: "c.txt", Content: "plain text"}
	data, contentType, err := decodeContent(item)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(data) != "plain text" || !strings.HasPrefix(contentType, "text/plain") {
		t.Errorf("got %q / %q", data, contentType)
	}
}

func TestDecodeContentBadBase64(t *testing.T) {
	item := UploadItem{Key: "d.bin", Content: "base64:%%%"}
	if _, _, err := decodeContent(item); err == nil {
		t.Error("expected error for bad base64")
	}
}
