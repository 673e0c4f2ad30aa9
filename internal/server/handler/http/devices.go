// Package http provides HTTP handlers for creating and refreshing device fixtures.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/atinyakov/binfixture/internal/repository"
	"github.com/atinyakov/binfixture/internal/service"
)

// DeviceService defines the registry operations required by the DeviceHandler.
type DeviceService interface {
	// Create registers a device for the identifier token.
	Create(ctx context.Context, token string) (*service.Fixture, error)
	// Refresh issues a new unique code; found is false for unknown ids.
	Refresh(ctx context.Context, id string) (scan string, found bool, err error)
	// Get returns the fixture of one device.
	Get(ctx context.Context, id string) (*service.Fixture, error)
	// List returns all fixtures in creation order.
	List(ctx context.Context) ([]*service.Fixture, error)
}

// QRRenderer draws a string as a PNG QR code.
type QRRenderer interface {
	PNG(text string) ([]byte, error)
}

// DeviceHandler handles HTTP requests for device fixtures.
type DeviceHandler struct {
	Devices  DeviceService
	Renderer QRRenderer
	Log      *zap.Logger
}

// CreateRequest is the body of POST /api/devices.
type CreateRequest struct {
	// Token is AUTO, empty, a number in [0, 999] or a custom suffix.
	Token string `json:"token"`
}

// DeviceResponse describes a device and the texts of both QR codes.
type DeviceResponse struct {
	Position   int    `json:"position"`
	ID         string `json:"id"`
	UniqueCode uint64 `json:"uniqueCode"`
	State      string `json:"state"`
	Register   string `json:"register,omitempty"`
	Scan       string `json:"scan"`
}

func toResponse(f *service.Fixture) DeviceResponse {
	return DeviceResponse{
		Position:   f.Position,
		ID:         f.Device.ID,
		UniqueCode: f.Device.UniqueCode,
		State:      string(f.Device.State),
		Register:   f.Register,
		Scan:       f.Scan,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Create handles POST /api/devices.
// An empty body means automatic assignment.
func (h *DeviceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}

	f, err := h.Devices.Create(r.Context(), req.Token)
	switch {
	case errors.Is(err, service.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil && f != nil:
		// The device exists but has no encoded scan yet; refresh retries.
		h.Log.Error("create: scan not encoded", zap.String("device_id", f.Device.ID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  err.Error(),
			"device": toResponse(f),
		})
		return
	case err != nil:
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(f))
}

// Refresh handles POST /api/devices/{id}/scan.
// Unknown ids yield 204 with no body and no state change.
func (h *DeviceHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	scan, found, err := h.Devices.Refresh(r.Context(), id)
	if !found && err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.Log.Error("refresh failed", zap.String("device_id", id), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	f, err := h.Devices.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	resp := toResponse(f)
	resp.Register = ""
	resp.Scan = scan
	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /api/devices.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	fixtures, err := h.Devices.List(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(fixtures, func(f *service.Fixture, _ int) DeviceResponse {
		return toResponse(f)
	}))
}

// RegisterQR handles GET /api/devices/{id}/register.png.
func (h *DeviceHandler) RegisterQR(w http.ResponseWriter, r *http.Request) {
	h.serveQR(w, r, func(f *service.Fixture) string { return f.Register })
}

// ScanQR handles GET /api/devices/{id}/scan.png.
func (h *DeviceHandler) ScanQR(w http.ResponseWriter, r *http.Request) {
	h.serveQR(w, r, func(f *service.Fixture) string { return f.Scan })
}

// InvalidQR handles GET /api/invalid.png.
func (h *DeviceHandler) InvalidQR(w http.ResponseWriter, _ *http.Request) {
	h.writePNG(w, service.InvalidPayload)
}

func (h *DeviceHandler) serveQR(w http.ResponseWriter, r *http.Request, pick func(*service.Fixture) string) {
	f, err := h.Devices.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, repository.ErrDeviceNotFound) {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	text := pick(f)
	if text == "" {
		http.Error(w, "scan payload not encoded", http.StatusConflict)
		return
	}
	h.writePNG(w, text)
}

func (h *DeviceHandler) writePNG(w http.ResponseWriter, text string) {
	img, err := h.Renderer.PNG(text)
	if err != nil {
		h.Log.Error("render qr", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img)
}
