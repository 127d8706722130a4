package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a11y-gateway/internal/config"
	"a11y-gateway/internal/domain"
	"a11y-gateway/internal/infra/chrome"
	"a11y-gateway/internal/infra/metrics"
	"a11y-gateway/internal/infra/storage"
	"a11y-gateway/internal/service"
)

type okService struct{ checks int }

func (s *okService) Check(_ context.Context, up domain.Upload) (*service.CheckResult, error) {
	s.checks++
	return &service.CheckResult{
		Document: &domain.Document{Name: up.Name, Data: up.Data},
		Report:   &domain.Asset{Name: "accessibility-report.json", Body: io.NopCloser(strings.NewReader(`{"ok":true}`))},
	}, nil
}

func (s *okService) AutoTag(context.Context, domain.Upload, service.AutoTagOptions) (*service.AutoTagResult, error) {
	return nil, domain.NewStageError(domain.StageRemote, io.ErrUnexpectedEOF)
}

func (s *okService) RecordOutcome(context.Context, service.Outcome) {}

func minimalConfig() config.Config {
	cfg := config.Default()
	cfg.Cache.RedisHost = ""
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config, svc *okService) *fiber.App {
	t.Helper()
	return New(Deps{
		Config:   cfg,
		Service:  svc,
		Store:    storage.NewReportStore(filepath.Join(t.TempDir(), "reports")),
		Renderer: chrome.NewRenderer(cfg),
		Metrics:  metrics.New(),
	})
}

func upload(t *testing.T, target string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "a.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF"))
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestNew_RoutesAndJSON404(t *testing.T) {
	app := newTestApp(t, minimalConfig(), &okService{})

	respStats, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/chrome/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, respStats.StatusCode)

	resp404, err := app.Test(httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp404.StatusCode)
	assert.Contains(t, resp404.Header.Get("Content-Type"), "application/json")

	var env struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp404.Body).Decode(&env))
	assert.Equal(t, http.StatusNotFound, env.Error.Code)
	assert.Equal(t, "Not Found", env.Error.Message)
}

func TestNew_UploadRoutes(t *testing.T) {
	svc := &okService{}
	app := newTestApp(t, minimalConfig(), svc)

	resp, err := app.Test(upload(t, "/upload-pdf"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	resp, err = app.Test(upload(t, "/autotag"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "Error processing PDF", string(body))
}

func TestNew_Metrics(t *testing.T) {
	app := newTestApp(t, minimalConfig(), &okService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNew_UploadRateLimit(t *testing.T) {
	cfg := minimalConfig()
	cfg.RateLimiter.UserLimit = 1
	cfg.RateLimiter.Interval = time.Hour
	svc := &okService{}
	app := newTestApp(t, cfg, svc)

	resp, err := app.Test(upload(t, "/upload-pdf"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(upload(t, "/upload-pdf"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, 1, svc.checks)
}
