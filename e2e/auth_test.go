package e2e

import (
	"net/http"
	"testing"
	"time"

	"github.com/orbitlabs/orbit-api/internal/auth"
	"github.com/orbitlabs/orbit-api/internal/config"
	"github.com/orbitlabs/orbit-api/internal/handler"
	"github.com/orbitlabs/orbit-api/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

const processBody = `{"orderId": "order-123", "action": "process"}`

func TestProcess_NoToken(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/internal/orders/process", processBody, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)

	// the body is matched verbatim by internal callers
	body := readBody(t, resp)
	want := `{"success":false,"error":"System authentication required"}`
	if body != want {
		t.Errorf("body = %s, want %s", body, want)
	}

	if len(ta.svc.calls()) != 0 {
		t.Error("workflow must not run for unauthenticated requests")
	}
}

func TestProcess_WrongToken(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/internal/orders/process", processBody, map[string]string{
		"Authorization": "Bearer wrong-secret",
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)

	result := parseJSON(t, resp)
	if result["success"] != false || result["error"] != "System authentication required" {
		t.Errorf("unexpected body: %v", result)
	}
	if len(ta.svc.calls()) != 0 {
		t.Error("workflow must not run for invalid tokens")
	}
}

func TestProcess_MalformedAuthHeader(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/internal/orders/process", processBody, map[string]string{
		"Authorization": testSystemSecret, // missing Bearer prefix
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestProcess_SystemSecret(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(ta.app, http.MethodPost, "/internal/orders/process", processBody)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	calls := ta.svc.calls()
	if len(calls) != 1 || calls[0].OrderID != "order-123" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestProcess_ServiceToken(t *testing.T) {
	ta := setupApp(t)

	token, err := auth.SignServiceToken(testSystemSecret, "checkout-webhook", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	resp, err := doRequest(ta.app, http.MethodPost, "/internal/orders/process", processBody, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
}

func TestProcess_SourceAllowList(t *testing.T) {
	svc := &stubWorkflowService{}
	processHandler := handler.NewProcessHandler(svc)

	authCfg := &config.AuthConfig{
		SystemSecret:   testSystemSecret,
		AllowedSources: []string{"checkout-webhook"},
	}
	app := fiber.New()
	app.Post("/internal/orders/process", middleware.SystemAuth(authCfg), processHandler.HandleProcess)

	// listed source passes
	resp, err := doRequest(app, http.MethodPost, "/internal/orders/process", processBody, map[string]string{
		"Authorization":     "Bearer " + testSystemSecret,
		"x-source-function": "checkout-webhook",
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	// unlisted source is rejected
	resp, err = doRequest(app, http.MethodPost, "/internal/orders/process", processBody, map[string]string{
		"Authorization":     "Bearer " + testSystemSecret,
		"x-source-function": "somewhere-else",
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}
