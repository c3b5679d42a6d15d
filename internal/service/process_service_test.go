package service

import (
	"strings"
	"testing"
	"time"

	"github.com/orbitlabs/orbit-api/internal/model"
)

func TestAppendHealthSummary(t *testing.T) {
	resp := &model.ProcessResponse{Message: "order order-1 is consistent"}
	report := &model.HealthReport{
		Overall: model.HealthDegraded,
		Components: map[string]model.HealthState{
			"database": model.HealthHealthy,
			"storage":  model.HealthHealthy,
			"gemini":   model.HealthDegraded,
		},
		Timestamp: time.Now().UTC(),
	}

	appendHealthSummary(resp, report)

	if !strings.Contains(resp.Message, "overall health: degraded") {
		t.Errorf("message = %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "gemini: degraded") {
		t.Errorf("degraded component missing from message: %q", resp.Message)
	}
	if strings.Contains(resp.Message, "database") {
		t.Errorf("healthy components must not be listed: %q", resp.Message)
	}
}

func TestAppendHealthSummaryAllHealthy(t *testing.T) {
	resp := &model.ProcessResponse{Message: "order processed"}
	report := &model.HealthReport{
		Overall: model.HealthHealthy,
		Components: map[string]model.HealthState{
			"database": model.HealthHealthy,
		},
	}

	appendHealthSummary(resp, report)

	if resp.Message != "order processed | overall health: healthy" {
		t.Errorf("message = %q", resp.Message)
	}
}
