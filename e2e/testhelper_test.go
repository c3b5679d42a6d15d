package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/orbitlabs/orbit-api/internal/config"
	"github.com/orbitlabs/orbit-api/internal/handler"
	"github.com/orbitlabs/orbit-api/internal/middleware"
	"github.com/orbitlabs/orbit-api/internal/model"
	"github.com/orbitlabs/orbit-api/internal/repository"
	"github.com/orbitlabs/orbit-api/internal/service"
)

const testSystemSecret = "test-system-secret-for-e2e"

// stubWorkflowService records invocations so tests can assert the engine
// was (or was not) reached. It never touches a database. Seeding statusOrder
// and statusImages makes OrderStatus return them; otherwise it reports the
// order as missing.
type stubWorkflowService struct {
	mu           sync.Mutex
	processCalls []model.ProcessRequest
	statusOrder  *model.Order
	statusImages []model.Image
}

func (s *stubWorkflowService) Process(ctx context.Context, req *model.ProcessRequest) *model.ProcessResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processCalls = append(s.processCalls, *req)
	return &model.ProcessResponse{
		Success:           true,
		OrchestrationType: "workflow-engine",
		OrderID:           req.OrderID,
		Message:           "stub run",
		Timestamp:         time.Now().UTC(),
	}
}

func (s *stubWorkflowService) Discovery(ctx context.Context) (*model.DiscoveryResult, error) {
	return &model.DiscoveryResult{}, nil
}

func (s *stubWorkflowService) OrderStatus(ctx context.Context, orderID string) (*model.Order, []model.Image, map[model.ImageStatus]int, error) {
	if s.statusOrder == nil || s.statusOrder.ID != orderID {
		return nil, nil, nil, repository.ErrOrderNotFound
	}
	counts := make(map[model.ImageStatus]int)
	for _, img := range s.statusImages {
		counts[img.ProcessingStatus]++
	}
	return s.statusOrder, s.statusImages, counts, nil
}

func (s *stubWorkflowService) calls() []model.ProcessRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ProcessRequest, len(s.processCalls))
	copy(out, s.processCalls)
	return out
}

// testApp holds all components needed for testing.
type testApp struct {
	app *fiber.App
	svc *stubWorkflowService
}

// setupApp builds the app with the same routing and middleware as main.go,
// a stub workflow service, and no external infrastructure.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	svc := &stubWorkflowService{}
	processHandler := handler.NewProcessHandler(svc)
	healthHandler := handler.NewHealthHandler(
		service.NewHealthService(nil, nil, nil, nil, nil, true))

	authCfg := &config.AuthConfig{SystemSecret: testSystemSecret}

	app := fiber.New()
	app.Get("/health", healthHandler.HandleHealth)

	internal := app.Group("/internal", middleware.SystemAuth(authCfg))
	orders := internal.Group("/orders")
	orders.Post("/process", processHandler.HandleProcess)
	orders.Get("/pending", processHandler.HandleDiscovery)
	orders.Get("/:orderId/status", processHandler.HandleStatus)

	return &testApp{app: app, svc: svc}
}

func doRequest(app *fiber.App, method, path, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return app.Test(req, -1)
}

func doAuthRequest(app *fiber.App, method, path, body string) (*http.Response, error) {
	return doRequest(app, method, path, body, map[string]string{
		"Authorization":     "Bearer " + testSystemSecret,
		"x-source-function": "e2e-tests",
	})
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
