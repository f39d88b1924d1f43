package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoEye/internal/domain/models"
	"AutoEye/internal/repository"
	"AutoEye/internal/usecase"
	xhttp "AutoEye/pkg/http"
)

var stamp = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func newTestEcho(t *testing.T) (*echo.Echo, string) {
	t.Helper()
	dir := t.TempDir()
	q := usecase.NewSnapshotQuery(
		repository.NewElementFileStore(dir, nil),
		repository.NewStateFileStore(dir, nil),
		repository.NewTrendFileStore(dir, nil),
		repository.NewScenarioFileStore(dir, nil),
		nil, 0, nil,
	)
	e := echo.New()
	NewSnapshotsEchoHandler(nil, q).RegisterRoutes(e)
	return e, dir
}

func get(e *echo.Echo, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSnapshots_MissingStateIs404(t *testing.T) {
	e, _ := newTestEcho(t)
	rec := get(e, "/api/v1/state/EURUSD")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")
}

func TestSnapshots_InvalidStatusIs400(t *testing.T) {
	e, _ := newTestEcho(t)
	rec := get(e, "/api/v1/scenarios/EURUSD?status=pending")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Data []xhttp.ValidationError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_ONEOF", body.Data[0].Code)
}

func TestSnapshots_ElementsNeedTimeframe(t *testing.T) {
	e, _ := newTestEcho(t)
	rec := get(e, "/api/v1/elements/EURUSD")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(e, "/api/v1/elements/EURUSD?timeframe=M5&kind=wedge")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapshots_ScenariosDefaultToFullDocument(t *testing.T) {
	e, dir := newTestEcho(t)
	_, err := repository.NewScenarioFileStore(dir, nil).Save(context.Background(), &models.ScenarioDocument{
		SchemaVersion: models.SchemaVersion,
		Symbol:        "EURUSD",
		UpdatedAtUTC:  models.NewISOTime(stamp),
		Active:        []models.Scenario{},
		History:       []models.Scenario{},
	})
	require.NoError(t, err)

	rec := get(e, "/api/v1/scenarios/eurusd")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status int                     `json:"status"`
		Data   models.ScenarioDocument `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 200, body.Status)
	assert.Equal(t, "EURUSD", body.Data.Symbol)

	rec = get(e, "/api/v1/scenarios/EURUSD?status=history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"OK","data":[]}`, rec.Body.String())
}
