package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rede-alerta/alertsync/internal/alert"
	"github.com/rede-alerta/alertsync/internal/engine"
	"github.com/rede-alerta/alertsync/internal/geo"
	"github.com/rede-alerta/alertsync/internal/redealerta"
)

type fakeEngine struct {
	RefreshFn      func(ctx context.Context) error
	SubmitFn       func(ctx context.Context, d alert.Draft) (alert.Alert, error)
	ChangeStatusFn func(ctx context.Context, id int64, status alert.Status) error
	RemoveFn       func(ctx context.Context, id int64) error
	snapshot       []alert.Alert
	health         engine.Health
}

func (f *fakeEngine) Refresh(ctx context.Context) error {
	if f.RefreshFn != nil {
		return f.RefreshFn(ctx)
	}
	return nil
}

func (f *fakeEngine) Submit(ctx context.Context, d alert.Draft) (alert.Alert, error) {
	if f.SubmitFn != nil {
		return f.SubmitFn(ctx, d)
	}
	return alert.Alert{}, nil
}

func (f *fakeEngine) ChangeStatus(ctx context.Context, id int64, status alert.Status) error {
	if f.ChangeStatusFn != nil {
		return f.ChangeStatusFn(ctx, id, status)
	}
	return nil
}

func (f *fakeEngine) Remove(ctx context.Context, id int64) error {
	if f.RemoveFn != nil {
		return f.RemoveFn(ctx, id)
	}
	return nil
}

func (f *fakeEngine) Snapshot() []alert.Alert { return f.snapshot }
func (f *fakeEngine) Health() engine.Health   { return f.health }

type fakeDrafts struct {
	draft alert.Draft
	ok    bool
}

func (f *fakeDrafts) Load() (alert.Draft, bool) { return f.draft, f.ok }

type fakeRegions struct {
	regions []redealerta.Region
	err     error
}

func (f *fakeRegions) Regions(ctx context.Context) ([]redealerta.Region, error) {
	return f.regions, f.err
}

type fakeLocator struct {
	result geo.Result
}

func (f *fakeLocator) Capture(ctx context.Context) geo.Result { return f.result }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestHandler(e *fakeEngine) (*Handler, *fakeDrafts, *fakeRegions, *fakeLocator) {
	drafts := &fakeDrafts{}
	regions := &fakeRegions{}
	locator := &fakeLocator{}
	return NewHandler(e, drafts, regions, locator, testLogger()), drafts, regions, locator
}

func makeRequest(h *Handler, method, url string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, req)
	return w
}

func TestListAlerts(t *testing.T) {
	e := &fakeEngine{snapshot: []alert.Alert{{ID: 42, Title: "Árvore caída", Status: alert.StatusEnviado}}}
	h, _, _, _ := newTestHandler(e)

	w := makeRequest(h, http.MethodGet, "/api/v1/alerts", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got []alert.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.EqualValues(t, 42, got[0].ID)
}

func TestSubmitAlert_Success(t *testing.T) {
	var submitted alert.Draft
	e := &fakeEngine{
		SubmitFn: func(ctx context.Context, d alert.Draft) (alert.Alert, error) {
			submitted = d
			return alert.Alert{ID: 42, Title: d.Title, Status: alert.StatusEnviado}, nil
		},
	}
	h, _, _, _ := newTestHandler(e)

	body := bytes.NewBufferString(`{"title": "Árvore caída", "description": "Bloqueando via", "location": "Rua das Flores", "latitude": -23.55, "longitude": -46.63}`)
	w := makeRequest(h, http.MethodPost, "/api/v1/alerts", body)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, submitted.HasFix)
	assert.InDelta(t, -23.55, submitted.Latitude, 1e-9)

	var got alert.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.EqualValues(t, 42, got.ID)
}

func TestSubmitAlert_NoCoordinatesMeansNoFix(t *testing.T) {
	var submitted alert.Draft
	e := &fakeEngine{
		SubmitFn: func(ctx context.Context, d alert.Draft) (alert.Alert, error) {
			submitted = d
			return alert.Alert{ID: 1}, nil
		},
	}
	h, _, _, _ := newTestHandler(e)

	body := bytes.NewBufferString(`{"title": "t", "description": "d", "location": "Praça Central"}`)
	w := makeRequest(h, http.MethodPost, "/api/v1/alerts", body)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.False(t, submitted.HasFix)
}

func TestSubmitAlert_ValidationErrorMapsTo400(t *testing.T) {
	e := &fakeEngine{
		SubmitFn: func(ctx context.Context, d alert.Draft) (alert.Alert, error) {
			return alert.Alert{}, &alert.ValidationError{Detail: "title is required"}
		},
	}
	h, _, _, _ := newTestHandler(e)

	w := makeRequest(h, http.MethodPost, "/api/v1/alerts", bytes.NewBufferString(`{"description": "d"}`))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "title is required")
}

func TestChangeStatus_Success(t *testing.T) {
	var gotID int64
	var gotStatus alert.Status
	e := &fakeEngine{
		ChangeStatusFn: func(ctx context.Context, id int64, status alert.Status) error {
			gotID, gotStatus = id, status
			return nil
		},
	}
	h, _, _, _ := newTestHandler(e)

	w := makeRequest(h, http.MethodPut, "/api/v1/alerts/42/status", bytes.NewBufferString(`{"status": "Resolvido"}`))

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.EqualValues(t, 42, gotID)
	assert.Equal(t, alert.StatusResolvido, gotStatus)
}

func TestChangeStatus_UnknownStatusRejectedBeforeEngine(t *testing.T) {
	called := false
	e := &fakeEngine{
		ChangeStatusFn: func(ctx context.Context, id int64, status alert.Status) error {
			called = true
			return nil
		},
	}
	h, _, _, _ := newTestHandler(e)

	w := makeRequest(h, http.MethodPut, "/api/v1/alerts/42/status", bytes.NewBufferString(`{"status": "Cancelado"}`))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called)
}

func TestChangeStatus_TerminalMapsTo409(t *testing.T) {
	e := &fakeEngine{
		ChangeStatusFn: func(ctx context.Context, id int64, status alert.Status) error {
			return &alert.InvalidTransitionError{ID: id, From: alert.StatusResolvido}
		},
	}
	h, _, _, _ := newTestHandler(e)

	w := makeRequest(h, http.MethodPut, "/api/v1/alerts/42/status", bytes.NewBufferString(`{"status": "Em andamento"}`))

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Resolvido")
}

func TestRemoveAlert_NotFoundMapsTo404(t *testing.T) {
	e := &fakeEngine{
		RemoveFn: func(ctx context.Context, id int64) error {
			return &alert.NotFoundError{ID: id}
		},
	}
	h, _, _, _ := newTestHandler(e)

	w := makeRequest(h, http.MethodDelete, "/api/v1/alerts/42", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefresh_NetworkErrorMapsTo502(t *testing.T) {
	e := &fakeEngine{
		RefreshFn: func(ctx context.Context) error {
			return &alert.NetworkError{Err: context.DeadlineExceeded}
		},
	}
	h, _, _, _ := newTestHandler(e)

	w := makeRequest(h, http.MethodPost, "/api/v1/alerts/refresh", nil)

	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestLastDraft(t *testing.T) {
	e := &fakeEngine{}
	h, drafts, _, _ := newTestHandler(e)

	w := makeRequest(h, http.MethodGet, "/api/v1/draft", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	drafts.draft = alert.Draft{Description: "Bloqueando via"}
	drafts.ok = true

	w = makeRequest(h, http.MethodGet, "/api/v1/draft", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Bloqueando via")
}

func TestListRegions(t *testing.T) {
	e := &fakeEngine{}
	h, _, regions, _ := newTestHandler(e)
	regions.regions = []redealerta.Region{{ID: 1, Nome: "Centro"}}

	w := makeRequest(h, http.MethodGet, "/api/v1/regions", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Centro")
}

func TestCaptureLocation(t *testing.T) {
	e := &fakeEngine{}
	h, _, _, locator := newTestHandler(e)
	locator.result = geo.Result{Fix: geo.Fix{Latitude: -23.55, Longitude: -46.63, Formatted: "-23.55000, -46.63000"}}

	w := makeRequest(h, http.MethodGet, "/api/v1/location", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got geo.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.False(t, got.Manual)
	assert.InDelta(t, -23.55, got.Fix.Latitude, 1e-9)
}

func TestHealth(t *testing.T) {
	e := &fakeEngine{health: engine.Health{ConsecutiveFailures: 2, LastError: "timeout"}}
	h, _, _, _ := newTestHandler(e)

	w := makeRequest(h, http.MethodGet, "/api/v1/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got engine.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 2, got.ConsecutiveFailures)
}
