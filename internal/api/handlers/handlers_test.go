package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawmate/billpipe/internal/ingestion"
	"github.com/lawmate/billpipe/internal/linksync"
	"github.com/lawmate/billpipe/internal/storage/models"
	"github.com/lawmate/billpipe/internal/storage/sqlite"
)

type stubCycles struct {
	sizes []int
	err   error
}

func (s *stubCycles) TryRun(ctx context.Context, pageSize int) (ingestion.Report, error) {
	s.sizes = append(s.sizes, pageSize)
	return ingestion.Report{RunID: "run-1", Fetched: pageSize, Inserted: 1, Duration: time.Second}, s.err
}

type stubLinks struct {
	err error
}

func (s stubLinks) Sync(ctx context.Context) (linksync.Result, error) {
	return linksync.Result{Created: 2, Updated: 5}, s.err
}

type stubBills map[string]*models.Bill

func (s stubBills) GetBill(ctx context.Context, apiID string) (*models.Bill, error) {
	if b, ok := s[apiID]; ok {
		return b, nil
	}
	return nil, sqlite.ErrNotFound
}

func newTestApp(cycles *stubCycles, links stubLinks, checks map[string]Check) *fiber.App {
	summary := "요약"
	bills := stubBills{
		"PRC_1": {
			ID:        7,
			APIID:     "PRC_1",
			BillTitle: "도로교통법 일부개정법률안",
			Summary:   &summary,
			Embedding: []float32{0.6, 0.8},
		},
	}

	app := fiber.New()
	Register(app,
		NewIngestHandler(cycles, links, 10),
		NewBillHandler(bills),
		NewHealthHandler(checks),
		nil,
	)
	return app
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestTriggerRefresh(t *testing.T) {
	cycles := &stubCycles{}
	app := newTestApp(cycles, stubLinks{}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/ingest/refresh", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "run-1", body["run_id"])
	assert.EqualValues(t, 10, body["fetched"])
	assert.EqualValues(t, 1000, body["duration_ms"])

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/ingest/refresh?size=50", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int{10, 50}, cycles.sizes)
}

func TestTriggerRefresh_BadSize(t *testing.T) {
	app := newTestApp(&stubCycles{}, stubLinks{}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/ingest/refresh?size=0", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTriggerRefresh_Conflict(t *testing.T) {
	app := newTestApp(&stubCycles{err: ingestion.ErrCycleInProgress}, stubLinks{}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/ingest/refresh", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSyncStatusLinks(t *testing.T) {
	app := newTestApp(&stubCycles{}, stubLinks{}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/status/sync", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.EqualValues(t, 2, body["created"])
	assert.EqualValues(t, 5, body["updated"])

	app = newTestApp(&stubCycles{}, stubLinks{err: errors.New("locked")}, nil)
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/status/sync", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestGetBill(t *testing.T) {
	app := newTestApp(&stubCycles{}, stubLinks{}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/bills/PRC_1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "PRC_1", body["api_id"])
	assert.Equal(t, "요약", body["summary"])
	assert.Nil(t, body["detail"])
	assert.EqualValues(t, 2, body["embedding_dim"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/bills/PRC_404", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReady(t *testing.T) {
	app := newTestApp(&stubCycles{}, stubLinks{}, map[string]Check{
		"sqlite": func(ctx context.Context) error { return nil },
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	app = newTestApp(&stubCycles{}, stubLinks{}, map[string]Check{
		"sqlite": func(ctx context.Context) error { return nil },
		"redis":  func(ctx context.Context) error { return errors.New("connection refused") },
	})

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	body := decode(t, resp)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["sqlite"])
	assert.Equal(t, "connection refused", checks["redis"])
}

func TestHealth(t *testing.T) {
	app := newTestApp(&stubCycles{}, stubLinks{}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode(t, resp)["status"])
}
