package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/binfixture/internal/metrics"
	"github.com/atinyakov/binfixture/internal/models"
	"github.com/atinyakov/binfixture/internal/render"
	"github.com/atinyakov/binfixture/internal/repository"
	"github.com/atinyakov/binfixture/internal/sealer"
	handler "github.com/atinyakov/binfixture/internal/server/handler/http"
	"github.com/atinyakov/binfixture/internal/service"
)

var testKey = []byte("UnanzaHarmony24!")

func newRouter(t *testing.T) (http.Handler, *sealer.Sealer) {
	t.Helper()
	s, err := sealer.New(testKey)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	svc := service.NewDeviceService(repository.NewMemoryDeviceRepository(), s, service.Options{
		CodeSeed: 500,
		Metrics:  metrics.New(reg),
	})
	h := &handler.DeviceHandler{Devices: svc, Renderer: render.New(), Log: zap.NewNop()}
	return handler.NewRouter(h, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), zap.NewNop()), s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCreate_Success(t *testing.T) {
	h, s := newRouter(t)

	w := do(t, h, http.MethodPost, "/api/devices", `{"token":"AUTO"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp handler.DeviceResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "DUMMY-BIN-001", resp.ID)
	assert.Equal(t, uint64(500), resp.UniqueCode)
	assert.Equal(t, 1, resp.Position)
	assert.Equal(t, string(models.StateScanEncoded), resp.State)
	assert.Contains(t, resp.Register, `"action":"REGISTER"`)

	plain, err := s.Open(resp.Scan)
	require.NoError(t, err)
	assert.Equal(t, `{"deviceId":"DUMMY-BIN-001","type":"SMART_BIN","action":"SCAN","uniqueCode":500}`, string(plain))
}

func TestCreate_EmptyBodyIsAuto(t *testing.T) {
	h, _ := newRouter(t)

	w := do(t, h, http.MethodPost, "/api/devices", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var resp handler.DeviceResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "DUMMY-BIN-001", resp.ID)
}

func TestCreate_Rejected(t *testing.T) {
	h, _ := newRouter(t)

	w := do(t, h, http.MethodPost, "/api/devices", `{"token":"1000"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/devices", `not-json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid body\n", w.Body.String())

	w = do(t, h, http.MethodGet, "/api/devices", "")
	var list []handler.DeviceResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Empty(t, list)
}

func TestRefresh(t *testing.T) {
	h, s := newRouter(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/devices", `{"token":"7"}`).Code)

	w := do(t, h, http.MethodPost, "/api/devices/DUMMY-BIN-007/scan", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp handler.DeviceResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, uint64(501), resp.UniqueCode)
	assert.Empty(t, resp.Register)

	plain, err := s.Open(resp.Scan)
	require.NoError(t, err)
	assert.Contains(t, string(plain), `"uniqueCode":501`)
}

func TestRefresh_Unknown(t *testing.T) {
	h, _ := newRouter(t)

	w := do(t, h, http.MethodPost, "/api/devices/DUMMY-BIN-404/scan", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestQRImages(t *testing.T) {
	h, _ := newRouter(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/devices", "").Code)

	for _, path := range []string{
		"/api/devices/DUMMY-BIN-001/register.png",
		"/api/devices/DUMMY-BIN-001/scan.png",
		"/api/invalid.png",
	} {
		w := do(t, h, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err, path)
		assert.Equal(t, render.Size, img.Bounds().Dx())
	}

	w := do(t, h, http.MethodGet, "/api/devices/nope/scan.png", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newRouter(t)
	do(t, h, http.MethodPost, "/api/devices", "")

	w := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "binfixture_devices_created_total 1")
}

// fakeDeviceService returns preconfigured results.
type fakeDeviceService struct {
	createFixture *service.Fixture
	createErr     error
	refreshErr    error
}

func (f *fakeDeviceService) Create(context.Context, string) (*service.Fixture, error) {
	return f.createFixture, f.createErr
}

func (f *fakeDeviceService) Refresh(context.Context, string) (string, bool, error) {
	return "", true, f.refreshErr
}

func (f *fakeDeviceService) Get(context.Context, string) (*service.Fixture, error) {
	return f.createFixture, nil
}

func (f *fakeDeviceService) List(context.Context) ([]*service.Fixture, error) {
	return nil, errors.New("list failed")
}

func TestCreate_EncryptionFailure(t *testing.T) {
	dev := models.NewDevice("DUMMY-BIN-001", 9)
	fake := &fakeDeviceService{
		createFixture: &service.Fixture{Device: dev, Position: 1, Register: "{}"},
		createErr:     errors.New("encode scan payload: boom"),
	}
	h := handler.NewRouter(&handler.DeviceHandler{Devices: fake, Renderer: render.New(), Log: zap.NewNop()}, nil, zap.NewNop())

	w := do(t, h, http.MethodPost, "/api/devices", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body struct {
		Error  string                 `json:"error"`
		Device handler.DeviceResponse `json:"device"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Contains(t, body.Error, "boom")
	assert.Equal(t, "DUMMY-BIN-001", body.Device.ID)
	assert.Equal(t, string(models.StateCreated), body.Device.State)

	// No encoded scan to draw yet.
	w = do(t, h, http.MethodGet, "/api/devices/DUMMY-BIN-001/scan.png", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodGet, "/api/devices", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRefresh_Failure(t *testing.T) {
	fake := &fakeDeviceService{refreshErr: errors.New("cipher unavailable")}
	h := handler.NewRouter(&handler.DeviceHandler{Devices: fake, Renderer: render.New(), Log: zap.NewNop()}, nil, zap.NewNop())

	w := do(t, h, http.MethodPost, "/api/devices/X/scan", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "cipher unavailable")
}
