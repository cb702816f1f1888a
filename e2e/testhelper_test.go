package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/pagecraft/api/internal/auth"
	"github.com/pagecraft/api/internal/client"
	"github.com/pagecraft/api/internal/config"
	"github.com/pagecraft/api/internal/gate"
	"github.com/pagecraft/api/internal/handler"
	"github.com/pagecraft/api/internal/middleware"
	"github.com/pagecraft/api/internal/pipeline"
	"github.com/pagecraft/api/internal/service"
	"github.com/pagecraft/api/internal/store"
	ws "github.com/pagecraft/api/internal/websocket"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app          *fiber.App
	store        store.Store
	orchestrator *pipeline.Orchestrator
}

// setupApp creates a Fiber app identical to main.go but with unconfigured
// external clients, so every service falls back to deterministic mocks.
// Needs a local Redis; tests skip when it is not running.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Redis (localhost, DB 15 to avoid collision with dev data)
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skipping: redis not available at localhost:6379: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: "localhost:6379",
		DB:   15,
	})
	t.Cleanup(func() { asynqClient.Close() })

	validate := validator.New()

	cfg := config.PipelineConfig{
		SequentialBatch: 1,
		ParallelBatch:   3,
		MaxRetries:      3,
		ListBudget:      0.4,
		TableBudget:     0.15,
		MinSectionWords: 60,
		BlockThreshold:  55,
		PassThreshold:   75,
		PenaltyCap:      10,
	}

	// External clients carry no API keys, so the adapter serves mock completions
	groqClient := client.NewGroqClient(&config.GroqConfig{})
	openaiClient := client.NewOpenAIClient(&config.OpenAIConfig{})
	generator := client.NewProviderAdapter(groqClient, openaiClient)

	st := store.NewMemoryStore()
	hub := ws.NewHub()
	go hub.Run()

	qualityGate := gate.New(nil, nil, cfg)
	orchestrator := pipeline.NewOrchestrator(st, generator, qualityGate, nil, hub, cfg, uuid.NewString)

	generationService := service.NewGenerationService(st, orchestrator, asynqClient)
	generationHandler := handler.NewGenerationHandler(generationService, validate)

	// Auth middleware: legacy HMAC only
	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		BodyLimit: 5 * 1024 * 1024,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"groq":      false,
				"openai":    false,
				"evaluator": false,
				"storage":   false,
				"auth":      true,
			},
		})
	})

	api := app.Group("/api", authMiddleware.Authenticate())

	// Use very high rate limits so tests don't get blocked
	generation := api.Group("/generation")
	generation.Post("/start", rateLimiter.StartLimit(10000), generationHandler.Start)
	generation.Get("/status/:jobId", rateLimiter.StatusLimit(10000), generationHandler.Status)
	generation.Get("/progress/:jobId", rateLimiter.StatusLimit(10000), generationHandler.Progress)
	generation.Get("/result/:jobId", generationHandler.Result)
	generation.Post("/cancel/:jobId", generationHandler.Cancel)

	return &testApp{app: app, store: st, orchestrator: orchestrator}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: "test-user-123",
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "pagecraft-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
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

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
