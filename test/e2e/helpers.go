//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/clinsim-ai/clinsim/internal/api/handlers"
	"github.com/clinsim-ai/clinsim/internal/domain"
	"github.com/clinsim-ai/clinsim/internal/ingest"
	"github.com/clinsim-ai/clinsim/internal/jobs"
	"github.com/clinsim-ai/clinsim/internal/repository"
	"github.com/clinsim-ai/clinsim/internal/server"
	"github.com/clinsim-ai/clinsim/internal/service"
	"github.com/clinsim-ai/clinsim/internal/storage"
	"github.com/clinsim-ai/clinsim/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	Oracle       *stubOracle
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server.
// The embedding and completion oracles are deterministic stubs so the suite
// runs without external API credentials.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "clinsim-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}

	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	oracle := newStubOracle()
	serverURL, serverCloser := startServer(t, pool, s3Client, oracle, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		Oracle:       oracle,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, userID string) (*APIResponse, int, error) {
	return e.doRequest("GET", path, nil, userID)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, userID string) (*APIResponse, int, error) {
	return e.doRequest("POST", path, body, userID)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, userID string) (*APIResponse, int, error) {
	return e.doRequest("DELETE", path, nil, userID)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, userID string) (*APIResponse, int, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, 0, err
	}

	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+userID)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	if len(respBody) == 0 {
		return &APIResponse{}, resp.StatusCode, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return &apiResp, resp.StatusCode, nil
}

// WaitForIngest polls the document status until ingestion completes.
func (e *E2ETestEnv) WaitForIngest(documentID, userID string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, status, err := e.Get("/documents/"+documentID, userID)
		if err == nil && status == http.StatusOK {
			var data struct {
				Ingest struct {
					Status string `json:"status"`
					Error  string `json:"error"`
				} `json:"ingest"`
			}
			if err := json.Unmarshal(resp.Data, &data); err == nil {
				switch data.Ingest.Status {
				case "completed":
					return
				case "failed":
					e.T.Fatalf("ingestion failed: %s", data.Ingest.Error)
				}
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	e.T.Fatalf("ingestion did not complete within %v", timeout)
}

// stubEmbedder produces deterministic pseudo-random unit vectors seeded from
// the input text. Components are non-negative so every pairwise cosine
// similarity clears a zero floor.
type stubEmbedder struct{}

func (stubEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return deterministicVector(text), nil
}

func (stubEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = deterministicVector(t)
	}
	return vectors, nil
}

func deterministicVector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	v := make([]float32, 1536)
	var norm float64
	for i := range v {
		v[i] = rng.Float32()
		norm += float64(v[i]) * float64(v[i])
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// stubOracle is a canned completion client. Question generation requests get
// a labeled vignette/question block; grading requests get rubric JSON built
// from the currently configured scores.
type stubOracle struct {
	mu     sync.Mutex
	scores domain.ScoreBreakdown
}

func newStubOracle() *stubOracle {
	return &stubOracle{
		scores: domain.ScoreBreakdown{
			ClinicalAccuracy: 3.5,
			RiskAssessment:   2.5,
			Communication:    1.5,
			Efficiency:       1.0,
		},
	}
}

// SetScores changes what the grading oracle returns for subsequent answers.
func (o *stubOracle) SetScores(s domain.ScoreBreakdown) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scores = s
}

func (o *stubOracle) Complete(ctx context.Context, systemPrompt, userPrompt string, jsonOutput bool) (string, error) {
	if !jsonOutput {
		return "Vignette: A 67-year-old presents to the emergency department with fever, tachycardia, and hypotension.\n\nQuestion: What is the most appropriate initial management?", nil
	}

	o.mu.Lock()
	s := o.scores
	o.mu.Unlock()

	grading := map[string]interface{}{
		"clinical_accuracy_score": s.ClinicalAccuracy,
		"risk_assessment_score":   s.RiskAssessment,
		"communication_score":     s.Communication,
		"efficiency_score":        s.Efficiency,
		"total_score":             s.ClinicalAccuracy + s.RiskAssessment + s.Communication + s.Efficiency,
		"feedback":                "Reasonable prioritization of time-critical interventions.",
		"strengths":               []string{"antibiotic timing"},
		"areas_for_improvement":   []string{"mention source control"},
	}
	raw, err := json.Marshal(grading)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// startServer wires the full service stack against the containers and starts
// the HTTP server plus the ingest worker.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, oracle *stubOracle, port int) (string, func()) {
	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	masteryRepo := repository.NewMasteryRepository(pool)
	jobRepo := repository.NewIngestJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	embedder := stubEmbedder{}

	documentSvc := service.NewDocumentServiceWithStorage(documentRepo, chunkRepo, jobRepo, txRunner, s3Client)
	ingestionSvc := service.NewIngestionService(documentRepo, embedder, txRunner, ingest.DefaultChunkConfig())

	retriever := service.NewRetriever(embedder, chunkRepo, service.RetrieverConfig{
		K:                3,
		OversampleFactor: 3,
		MinSimilarity:    0,
	})
	generator := service.NewQuestionGenerator(oracle)
	questionSvc := service.NewQuestionService(documentRepo, questionRepo, masteryRepo, retriever, generator)

	scorer := service.NewAnswerScorer(oracle, "stub-model")
	gradingSvc := service.NewGradingService(scorer, questionRepo, chunkRepo, txRunner, domain.LevelPolicy{
		LevelUpThreshold:     8.0,
		LevelDownThreshold:   5.0,
		CorrectnessThreshold: 7.0,
	})
	masterySvc := service.NewMasteryService(masteryRepo)

	ingestProcessor := jobs.NewIngestWorker(jobRepo, ingestionSvc)
	worker := jobs.NewWorker(ingestProcessor, 200*time.Millisecond)
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	go worker.Start(workerCtx)

	cfg := server.RouterConfig{
		DocumentHandler:  handlers.NewDocumentHandler(documentSvc),
		SimulatorHandler: handlers.NewSimulatorHandler(questionSvc, gradingSvc, masterySvc),
	}

	router := server.NewRouter(cfg)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		cancelWorker()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
