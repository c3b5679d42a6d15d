package e2e

import (
	"net/http"
	"testing"

	"github.com/orbitlabs/orbit-api/internal/model"
)

func TestProcess_MissingOrderID(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(ta.app, http.MethodPost, "/internal/orders/process", `{"action":"process"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)

	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatal("expected error object in response")
	}
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected error code VALIDATION_ERROR, got %v", errObj["code"])
	}
	if len(ta.svc.calls()) != 0 {
		t.Error("workflow must not run for invalid requests")
	}
}

func TestProcess_InvalidAction(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(ta.app, http.MethodPost, "/internal/orders/process",
		`{"orderId":"order-123","action":"destroy"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestProcess_InvalidAnalysisType(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(ta.app, http.MethodPost, "/internal/orders/process",
		`{"orderId":"order-123","analysisType":"portrait"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestProcess_ValidRequestReachesService(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(ta.app, http.MethodPost, "/internal/orders/process",
		`{"orderId":"order-42","action":"recover","analysisType":"lifestyle"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["success"] != true || result["orderId"] != "order-42" {
		t.Errorf("unexpected response: %v", result)
	}

	calls := ta.svc.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 service call, got %d", len(calls))
	}
	if string(calls[0].Action) != "recover" || string(calls[0].AnalysisType) != "lifestyle" {
		t.Errorf("call = %+v", calls[0])
	}
}

func TestOrderStatus_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(ta.app, http.MethodGet, "/internal/orders/nope/status", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestOrderStatus_ReturnsCounts(t *testing.T) {
	ta := setupApp(t)
	ta.svc.statusOrder = &model.Order{ID: "order-9", ProcessingStage: model.StageProcessing}
	ta.svc.statusImages = []model.Image{
		{ID: "img-1", OrderID: "order-9", ProcessingStatus: model.ImageCompleted},
		{ID: "img-2", OrderID: "order-9", ProcessingStatus: model.ImageCompleted},
		{ID: "img-3", OrderID: "order-9", ProcessingStatus: model.ImageError},
	}

	resp, err := doAuthRequest(ta.app, http.MethodGet, "/internal/orders/order-9/status", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	counts, ok := result["statusCounts"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected statusCounts map, got %v", result["statusCounts"])
	}
	if counts["completed"] != float64(2) || counts["error"] != float64(1) {
		t.Errorf("statusCounts = %v", counts)
	}
	if images, ok := result["images"].([]interface{}); !ok || len(images) != 3 {
		t.Errorf("images = %v", result["images"])
	}
}

func TestHealth_NoInfrastructure(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/health", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	// with no database or storage the service reports itself unhealthy
	assertStatus(t, resp, http.StatusServiceUnavailable)

	result := parseJSON(t, resp)
	if result["overall"] != "unhealthy" {
		t.Errorf("overall = %v", result["overall"])
	}
	components, ok := result["components"].(map[string]interface{})
	if !ok {
		t.Fatal("expected components map")
	}
	for _, name := range []string{"database", "redis", "storage", "gemini", "email"} {
		if _, ok := components[name]; !ok {
			t.Errorf("missing component %s", name)
		}
	}
}
