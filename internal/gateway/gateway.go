package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rede-alerta/alertsync/internal/alert"
	"github.com/rede-alerta/alertsync/internal/engine"
	"github.com/rede-alerta/alertsync/internal/geo"
	"github.com/rede-alerta/alertsync/internal/redealerta"
)

// SyncEngine is the slice of the engine the gateway consumes
type SyncEngine interface {
	Refresh(ctx context.Context) error
	Submit(ctx context.Context, d alert.Draft) (alert.Alert, error)
	ChangeStatus(ctx context.Context, id int64, status alert.Status) error
	Remove(ctx context.Context, id int64) error
	Snapshot() []alert.Alert
	Health() engine.Health
}

// DraftReader exposes the recovery record to the report screen
type DraftReader interface {
	Load() (alert.Draft, bool)
}

// RegionLister serves the region-selection screen
type RegionLister interface {
	Regions(ctx context.Context) ([]redealerta.Region, error)
}

// Locator serves the "use GPS" button on the report screen
type Locator interface {
	Capture(ctx context.Context) geo.Result
}

// Handler is the local HTTP surface the presentation screens consume.
// It holds no state of its own: every route is a thin translation between
// HTTP and an engine operation.
type Handler struct {
	engine  SyncEngine
	drafts  DraftReader
	regions RegionLister
	locator Locator
	logger  *logrus.Logger
}

// NewHandler creates the gateway handler
func NewHandler(e SyncEngine, drafts DraftReader, regions RegionLister, locator Locator, logger *logrus.Logger) *Handler {
	return &Handler{
		engine:  e,
		drafts:  drafts,
		regions: regions,
		locator: locator,
		logger:  logger,
	}
}

// Router builds the gateway route table
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.requestLogging)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/alerts", h.listAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts", h.submitAlert).Methods(http.MethodPost)
	api.HandleFunc("/alerts/refresh", h.refreshAlerts).Methods(http.MethodPost)
	api.HandleFunc("/alerts/{id:[0-9]+}/status", h.changeStatus).Methods(http.MethodPut)
	api.HandleFunc("/alerts/{id:[0-9]+}", h.removeAlert).Methods(http.MethodDelete)
	api.HandleFunc("/draft", h.lastDraft).Methods(http.MethodGet)
	api.HandleFunc("/regions", h.listRegions).Methods(http.MethodGet)
	api.HandleFunc("/location", h.captureLocation).Methods(http.MethodGet)
	api.HandleFunc("/health", h.health).Methods(http.MethodGet)

	return router
}

func (h *Handler) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.WithFields(logrus.Fields{
			"component": "gateway",
			"method":    r.Method,
			"path":      r.URL.Path,
		}).Debug("Handling request")
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

func (h *Handler) refreshAlerts(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Refresh(r.Context()); err != nil {
		// The previous collection is still served; the screen decides how
		// loudly to surface the staleness
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

// submitRequest is the report-screen payload. Coordinates are pointers so
// "no fix captured" is distinguishable from a genuine (0, 0).
type submitRequest struct {
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func (h *Handler) submitAlert(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d := alert.Draft{
		Title:       req.Title,
		Category:    req.Category,
		Description: req.Description,
		Location:    req.Location,
	}
	if req.Latitude != nil && req.Longitude != nil {
		d.Latitude = *req.Latitude
		d.Longitude = *req.Longitude
		d.HasFix = true
	}

	created, err := h.engine.Submit(r.Context(), d)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.writeDetail(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, valid := alert.ParseStatus(req.Status)
	if !valid {
		h.writeDetail(w, http.StatusBadRequest, "unknown status "+strconv.Quote(req.Status))
		return
	}

	if err := h.engine.ChangeStatus(r.Context(), id, status); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.writeDetail(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	if err := h.engine.Remove(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lastDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.drafts.Load()
	if !ok {
		h.writeDetail(w, http.StatusNotFound, "no draft saved")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) listRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.regions.Regions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

func (h *Handler) captureLocation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.locator.Capture(r.Context()))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Health())
}

// writeError maps the engine's error taxonomy onto HTTP statuses, keeping
// the upstream service's {"detail": ...} error shape so screens handle both
// the same way
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		trErr  *alert.InvalidTransitionError
		valErr *alert.ValidationError
		nfErr  *alert.NotFoundError
	)
	switch {
	case errors.As(err, &trErr):
		h.writeDetail(w, http.StatusConflict, trErr.Error())
	case errors.As(err, &valErr):
		h.writeDetail(w, http.StatusBadRequest, valErr.Detail)
	case errors.As(err, &nfErr):
		h.writeDetail(w, http.StatusNotFound, nfErr.Error())
	default:
		// NetworkError, DecodeError, anything unexpected: the remote side
		// failed us
		h.writeDetail(w, http.StatusBadGateway, err.Error())
	}
}

func (h *Handler) writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}
