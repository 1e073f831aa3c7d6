package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zerverless/versionindex/internal/config"
	"github.com/zerverless/versionindex/internal/registry"
	"github.com/zerverless/versionindex/internal/revision"
)

const (
	RevisionHeader = "X-Revision"
	maxPayloadSize = 32 << 20
)

var startTime = time.Now()

type Handlers struct {
	cfg     *config.Config
	manager *registry.Manager
}

func NewHandlers(cfg *config.Config, manager *registry.Manager) *Handlers {
	return &Handlers{cfg: cfg, manager: manager}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"node_id":        h.cfg.NodeID,
		"version":        "0.1.0",
		"default_app":    h.cfg.AppID,
		"version_count":  h.manager.VersionCount(),
		"apps":           h.manager.AppIDs(),
		"uptime_seconds": int(time.Since(startTime).Seconds()),
	})
}

type VersionsResponse struct {
	Versions []registry.Version `json:"versions"`
	Count    int                `json:"count"`
}

func (h *Handlers) ListVersions(w http.ResponseWriter, r *http.Request) {
	reg, ok := h.registry(w, r)
	if !ok {
		return
	}

	count := 0
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "count must be a positive integer"})
			return
		}
		count = n
	}

	versions, err := reg.ListVersions(r.Context(), count)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, VersionsResponse{Versions: versions, Count: len(versions)})
}

type KeyResponse struct {
	Key string `json:"key"`
}

func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	reg, ok := h.registry(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if rev := r.Header.Get(RevisionHeader); rev != "" {
		if !revision.Valid(rev) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + RevisionHeader + " header"})
			return
		}
		ctx = revision.NewContext(ctx, rev)
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	key, err := reg.Upload(ctx, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, KeyResponse{Key: key})
}

func (h *Handlers) GetCurrent(w http.ResponseWriter, r *http.Request) {
	reg, ok := h.registry(w, r)
	if !ok {
		return
	}

	key, err := reg.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, KeyResponse{Key: key})
}

func (h *Handlers) SetCurrent(w http.ResponseWriter, r *http.Request) {
	reg, ok := h.registry(w, r)
	if !ok {
		return
	}

	var req KeyResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key is required"})
		return
	}

	if err := reg.SetCurrent(r.Context(), req.Key); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, KeyResponse{Key: req.Key})
}

// Serve writes the payload of the current version, or of the retained
// version named by the revision query parameter.
func (h *Handlers) Serve(w http.ResponseWriter, r *http.Request) {
	reg, ok := h.registry(w, r)
	if !ok {
		return
	}

	key := r.URL.Query().Get("revision")
	if key == "" {
		current, err := reg.Current(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		key = current
	}

	payload, err := reg.Fetch(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(payload))
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(RevisionHeader, key)
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (h *Handlers) registry(w http.ResponseWriter, r *http.Request) (*registry.Registry, bool) {
	reg, err := h.manager.Get(chi.URLParam(r, "appId"))
	if errors.Is(err, registry.ErrInvalidAppID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, false
	}
	return reg, true
}

func writeError(w http.ResponseWriter, err error) {
	var (
		dupErr      *registry.DuplicateVersionError
		notFoundErr *registry.VersionNotFoundError
		revErr      *registry.RevisionUnavailableError
		storeErr    *registry.StoreError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &dupErr):
		status = http.StatusConflict
	case errors.As(err, &notFoundErr), errors.Is(err, registry.ErrNoCurrent):
		status = http.StatusNotFound
	case errors.As(err, &revErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &storeErr):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
