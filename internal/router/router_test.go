package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/config"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/llm"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/repository"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/service"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/utils"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type cannedProvider struct{ name string }

func (p *cannedProvider) ProcessImage(ctx context.Context, image []byte, prompt string) (*models.ReceiptRecord, error) {
	tax := 8.0
	return &models.ReceiptRecord{
		Payee:  "ブックストア",
		Date:   "2024/06/01",
		Amount: 108,
		Tax:    &tax,
		Items:  []models.LineItem{{Name: "絵本", Amount: 100, Category: models.CategoryBooks}},
	}, nil
}
func (p *cannedProvider) ProcessText(ctx context.Context, prompt string) (any, error) { return nil, nil }
func (p *cannedProvider) HealthCheck(ctx context.Context) bool                       { return true }
func (p *cannedProvider) HandleError(err error) *llm.ProviderError {
	return &llm.ProviderError{Kind: llm.KindUnknown, Provider: p.name, Cause: err}
}
func (p *cannedProvider) Name() string                   { return p.name }
func (p *cannedProvider) Model() string                  { return p.name + "-model" }
func (p *cannedProvider) Capabilities() llm.Capabilities { return llm.Capabilities{Vision: true} }

type testServer struct {
	app   *fiber.App
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hash, err := utils.HashPassword("secret-pass")
	require.NoError(t, err)
	cfg := &config.Config{
		AppName:               "test",
		JWTSecret:             "jwt-test",
		JWTAccessExpire:       time.Hour,
		AdminUsername:         "operator",
		AdminPasswordHash:     hash,
		UploadMaxSize:         1 << 20,
		UploadTTL:             time.Hour,
		ExtractionConcurrency: 2,
		LLMRetryMax:           0,
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	registry := map[string]llm.Constructor{
		"canned": func(cfg llm.ProviderConfig) (llm.Provider, error) { return &cannedProvider{name: "canned"}, nil },
		"other":  func(cfg llm.ProviderConfig) (llm.Provider, error) { return &cannedProvider{name: "other"}, nil },
	}
	configs := map[string]llm.ProviderConfig{
		"canned": {APIKey: "k", Model: "canned-model", MaxTokens: 100},
		"other":  {APIKey: "k", Model: "other-model", MaxTokens: 100},
	}
	factory := llm.NewFactory(registry, configs, []string{"canned", "other"}, logger)
	initial, err := factory.Create("canned")
	require.NoError(t, err)

	master, err := repository.LoadAccountMaster("../../data/account_master.json")
	require.NoError(t, err)

	app := fiber.New()
	require.NoError(t, Setup(app, Dependencies{
		Cfg:       cfg,
		Master:    master,
		Providers: llm.NewManager(factory, initial),
		Logger:    logger,
	}))

	s := &testServer{app: app}
	var login struct {
		Data models.LoginResponse `json:"data"`
	}
	resp := s.do(t, http.MethodPost, "/api/v1/auth/login", jsonBody(t, models.LoginRequest{Username: "operator", Password: "secret-pass"}), "application/json")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &login)
	s.token = login.Data.AccessToken
	require.NotEmpty(t, s.token)
	return s
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func multipartFiles(t *testing.T, field string, files map[string][]byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	var body map[string]interface{}
	decode(t, s.do(t, http.MethodGet, "/health", nil, ""), &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "canned", body["provider"])
	assert.Equal(t, false, body["database"])
}

func TestAuth_Required(t *testing.T) {
	s := newTestServer(t)
	s.token = ""

	resp := s.do(t, http.MethodGet, "/api/v1/accounts", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	s.token = "garbage"
	resp = s.do(t, http.MethodGet, "/api/v1/accounts", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	s.token = ""
	resp = s.do(t, http.MethodPost, "/api/v1/auth/login", jsonBody(t, models.LoginRequest{Username: "operator", Password: "wrong"}), "application/json")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestClassifyRoute(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/v1/classify", jsonBody(t, models.ClassifyRequest{Descriptions: []string{"宿泊費", "絵本", "???"}}), "application/json")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []struct {
			Description string                      `json:"description"`
			Result      models.ClassificationResult `json:"result"`
			Tier        string                      `json:"tier"`
		} `json:"data"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Data, 3)
	assert.Equal(t, service.TierMaster, body.Data[0].Tier)
	assert.Equal(t, "74110", body.Data[0].Result.AccountCode)
	assert.Equal(t, service.TierDetailed, body.Data[1].Tier)
	assert.Equal(t, service.TierDefault, body.Data[2].Tier)

	resp = s.do(t, http.MethodPost, "/api/v1/classify", jsonBody(t, models.ClassifyRequest{}), "application/json")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAccountRoutes(t *testing.T) {
	s := newTestServer(t)

	var list struct {
		Data struct {
			Sections []string         `json:"sections"`
			Accounts []models.Account `json:"accounts"`
		} `json:"data"`
	}
	decode(t, s.do(t, http.MethodGet, "/api/v1/accounts?search="+url.QueryEscape("宿泊"), nil, ""), &list)
	require.Len(t, list.Data.Accounts, 1)
	assert.Equal(t, "74110", list.Data.Accounts[0].Code)
	assert.Contains(t, list.Data.Sections, "損益")

	resp := s.do(t, http.MethodGet, "/api/v1/accounts/74110", nil, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = s.do(t, http.MethodGet, "/api/v1/accounts/00000", nil, "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestBatchFlow(t *testing.T) {
	s := newTestServer(t)

	var created struct {
		Data models.UploadBatch `json:"data"`
	}
	resp := s.do(t, http.MethodPost, "/api/v1/batches", nil, "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decode(t, resp, &created)
	code := created.Data.Code

	resp = s.do(t, http.MethodPost, "/api/v1/batches/"+code+"/process", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "empty batch")

	body, ct := multipartFiles(t, "files", map[string][]byte{"a.png": pngHeader, "b.png": pngHeader})
	resp = s.do(t, http.MethodPost, "/api/v1/batches/"+code+"/files", body, ct)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body, ct = multipartFiles(t, "files", map[string][]byte{"notes.txt": []byte("hello")})
	resp = s.do(t, http.MethodPost, "/api/v1/batches/"+code+"/files", body, ct)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "non-image upload")

	var pending struct {
		Data models.BatchProgress `json:"data"`
	}
	decode(t, s.do(t, http.MethodGet, "/api/v1/batches/"+code+"/progress", nil, ""), &pending)
	assert.Equal(t, "pending", pending.Data.Status)

	var processed struct {
		Data models.BatchReport `json:"data"`
	}
	resp = s.do(t, http.MethodPost, "/api/v1/batches/"+code+"/process", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &processed)
	assert.Equal(t, 2, processed.Data.Total)
	assert.Equal(t, 2, processed.Data.Succeeded)
	assert.Equal(t, "canned", processed.Data.Provider)

	var progress struct {
		Data models.BatchProgress `json:"data"`
	}
	decode(t, s.do(t, http.MethodGet, "/api/v1/batches/"+code+"/progress", nil, ""), &progress)
	assert.Equal(t, "completed", progress.Data.Status)

	resp = s.do(t, http.MethodGet, "/api/v1/batches/"+code+"/export", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	rows, err := f.GetRows(service.SheetReceipts)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	f.Close()

	resp = s.do(t, http.MethodPost, "/api/v1/batches/"+code+"/enqueue", nil, "")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode, "no redis")

	resp = s.do(t, http.MethodDelete, "/api/v1/batches/"+code, nil, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = s.do(t, http.MethodGet, "/api/v1/batches/"+code+"/files", nil, "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func (s *testServer) processedBatch(t *testing.T) string {
	t.Helper()
	var created struct {
		Data models.UploadBatch `json:"data"`
	}
	resp := s.do(t, http.MethodPost, "/api/v1/batches", nil, "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decode(t, resp, &created)

	body, ct := multipartFiles(t, "files", map[string][]byte{"a.png": pngHeader})
	resp = s.do(t, http.MethodPost, "/api/v1/batches/"+created.Data.Code+"/files", body, ct)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp = s.do(t, http.MethodPost, "/api/v1/batches/"+created.Data.Code+"/process", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return created.Data.Code
}

func TestBatchReport_SurvivesLaterRequests(t *testing.T) {
	s := newTestServer(t)

	first := s.processedBatch(t)
	second := s.processedBatch(t)

	for i := 0; i < 30; i++ {
		s.do(t, http.MethodGet, "/api/v1/accounts?search="+url.QueryEscape("宿泊"), nil, "").Body.Close()
		s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/batches/%s%02d/progress", strings.Repeat("X", 12), i), nil, "").Body.Close()
	}

	for _, code := range []string{first, second} {
		resp := s.do(t, http.MethodGet, "/api/v1/batches/"+code+"/report", nil, "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode, code)
		var report struct {
			Data models.BatchReport `json:"data"`
		}
		decode(t, resp, &report)
		assert.Equal(t, code, report.Data.BatchCode)

		var progress struct {
			Data models.BatchProgress `json:"data"`
		}
		decode(t, s.do(t, http.MethodGet, "/api/v1/batches/"+code+"/progress", nil, ""), &progress)
		assert.Equal(t, code, progress.Data.BatchCode)
		assert.Equal(t, "completed", progress.Data.Status)
	}
}

func TestReceiptExtractRoute(t *testing.T) {
	s := newTestServer(t)

	body, ct := multipartFiles(t, "file", map[string][]byte{"r.png": pngHeader})
	resp := s.do(t, http.MethodPost, "/api/v1/receipts/extract", body, ct)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Data models.ExtractionOutcome `json:"data"`
	}
	decode(t, resp, &out)
	assert.True(t, out.Data.Success)
	assert.Equal(t, "ブックストア", out.Data.Receipt.Payee)
	require.Len(t, out.Data.Items, 1)
	assert.Equal(t, "74620", out.Data.Items[0].Classification.AccountCode)
}

func TestProviderSwitchRoute(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/v1/providers/switch", jsonBody(t, map[string]string{"provider": "other"}), "application/json")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, s.do(t, http.MethodGet, "/health", nil, ""), &body)
	assert.Equal(t, "other", body["provider"])

	resp = s.do(t, http.MethodPost, "/api/v1/providers/switch", jsonBody(t, map[string]string{"provider": "missing"}), "application/json")
	assert.NotEqual(t, fiber.StatusOK, resp.StatusCode)
}

func TestHistoryWithoutDatabase(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/v1/history", nil, "")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
