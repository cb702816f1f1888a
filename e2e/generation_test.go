package e2e

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func validStartBody() string {
	projectID := uuid.New().String()
	documentID := uuid.New().String()
	return fmt.Sprintf(`{
		"brief": {
			"projectId": "%s",
			"documentId": "%s",
			"title": "Kubernetes Autoscaling Guide",
			"audience": "platform engineers",
			"tone": "practical",
			"outline": [
				{"key": "basics", "heading": "Autoscaling Basics", "targetWords": 150},
				{"key": "hpa", "heading": "How the HPA Works", "targetWords": 150, "keywords": ["metrics", "replicas"]}
			],
			"imagePlan": [
				{"sectionKey": "basics", "description": "Scaling feedback loop"}
			]
		}
	}`, projectID, documentID)
}

func TestGenerationStart_Success(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/generation/start", validStartBody())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["jobId"] == nil || result["jobId"] == "" {
		t.Error("expected 'jobId' in response")
	}
	if result["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", result["status"])
	}
}

func TestGenerationStart_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/generation/start", validStartBody(), nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestGenerationStart_InvalidBody(t *testing.T) {
	ta := setupApp(t)

	// Missing required brief fields
	body := `{"brief": {"projectId": "p-1"}}`

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/generation/start", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestGenerationStart_EmptyOutline(t *testing.T) {
	ta := setupApp(t)

	body := `{
		"brief": {
			"projectId": "p-1",
			"documentId": "d-1",
			"title": "No Sections",
			"outline": []
		}
	}`

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/generation/start", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)

	result := parseJSON(t, resp)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected error code VALIDATION_ERROR, got %v", errObj["code"])
	}
}

func startJob(t *testing.T, ta *testApp) string {
	t.Helper()
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/generation/start", validStartBody())
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	result := parseJSON(t, resp)
	return result["jobId"].(string)
}

func TestGenerationStatus_Success(t *testing.T) {
	ta := setupApp(t)
	jobID := startJob(t, ta)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/generation/status/"+jobID, "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["jobId"] != jobID {
		t.Errorf("expected jobId %s, got %v", jobID, result["jobId"])
	}
	if result["status"] == nil {
		t.Error("expected 'status' field in response")
	}
}

func TestGenerationStatus_NotFound(t *testing.T) {
	ta := setupApp(t)

	fakeJobID := uuid.New().String()
	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/generation/status/"+fakeJobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)

	result := parseJSON(t, resp)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "NOT_FOUND" {
		t.Errorf("expected error code NOT_FOUND, got %v", errObj["code"])
	}
}

func TestGenerationProgress_Success(t *testing.T) {
	ta := setupApp(t)
	jobID := startJob(t, ta)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/generation/progress/"+jobID, "")
	if err != nil {
		t.Fatalf("progress request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", result["status"])
	}
	passes, ok := result["passes"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected 'passes' map, got %v", result["passes"])
	}
	if passes["draft"] != "not_started" {
		t.Errorf("expected draft pass not_started, got %v", passes["draft"])
	}
}

func TestGenerationResult_NotDone(t *testing.T) {
	ta := setupApp(t)
	jobID := startJob(t, ta)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/generation/result/"+jobID, "")
	if err != nil {
		t.Fatalf("result request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)

	result := parseJSON(t, resp)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected error code VALIDATION_ERROR, got %v", errObj["code"])
	}
}

func TestGenerationResult_AfterPipelineRun(t *testing.T) {
	ta := setupApp(t)
	jobID := startJob(t, ta)

	// run the pipeline in-process instead of waiting on a worker; the mock
	// generator makes the run deterministic
	if err := ta.orchestrator.Run(context.Background(), jobID); err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/generation/result/"+jobID, "")
	if err != nil {
		t.Fatalf("result request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["status"] != "completed" {
		t.Errorf("expected status 'completed', got %v", result["status"])
	}
	doc, ok := result["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected 'result' object, got %v", result["result"])
	}
	document, _ := doc["document"].(string)
	if !strings.HasPrefix(document, "# Kubernetes Autoscaling Guide") {
		t.Errorf("document does not open with the title: %.60q", document)
	}
	if !strings.Contains(document, "## Autoscaling Basics") {
		t.Error("document missing the first section heading")
	}
	if result["verdict"] == nil {
		t.Error("expected 'verdict' in response")
	}
}

func TestGenerationCancel_Success(t *testing.T) {
	ta := setupApp(t)
	jobID := startJob(t, ta)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/generation/cancel/"+jobID, "")
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["success"] != true {
		t.Errorf("expected success true, got %v", result["success"])
	}
	if result["status"] != "canceled" {
		t.Errorf("expected status 'canceled', got %v", result["status"])
	}

	// a second cancel hits a finished job
	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/generation/cancel/"+jobID, "")
	if err != nil {
		t.Fatalf("second cancel request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestGenerationCancel_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/generation/cancel/"+uuid.New().String(), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
}
