/*
handlers.go - HTTP API handlers for the forecast history engine

PURPOSE:
  Exposes the version store and ingestion runner via REST. Handles
  HTTP request/response and JSON serialization; all versioning
  semantics stay in scd and ingest.

ENDPOINTS:
  GET  /api/forecasts                Current version of every slot
  GET  /api/forecasts/{key}/history  Full version lineage for a slot
  POST /api/ingest/run               Trigger one ingestion run now
  GET  /api/healthz                  Liveness

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed business key
  - 404: Key never seen
  - 502: Supplier fetch failed
  - 500: Storage failures

SEE ALSO:
  - dto.go: Response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/forecast-engine/forecast"
	"github.com/warp/forecast-engine/ingest"
	"github.com/warp/forecast-engine/scd"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  scd.Store
	Runner *ingest.Runner
}

// NewHandler creates a new handler.
func NewHandler(store scd.Store, runner *ingest.Runner) *Handler {
	return &Handler{Store: store, Runner: runner}
}

// =============================================================================
// FORECAST READS
// =============================================================================

// ListCurrent returns the current version of every known forecast slot.
func (h *Handler) ListCurrent(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.Current(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toVersionDTOs(records))
}

// GetHistory returns the full version lineage of one forecast slot,
// ordered by valid_from with the current version last.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	key := scd.BusinessKey(chi.URLParam(r, "key"))
	if _, err := forecast.ParseSlotKey(key); err != nil {
		writeError(w, http.StatusBadRequest, "business key must be an RFC3339 timestamp")
		return
	}

	records, err := h.Store.History(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "no versions for key")
		return
	}
	writeJSON(w, http.StatusOK, toVersionDTOs(records))
}

// =============================================================================
// INGESTION
// =============================================================================

// TriggerRun executes one ingestion run synchronously and reports its
// summary. Per-key failures show up in the summary, not as an HTTP
// error; only a supplier-level failure fails the request.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Runner.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toRunSummaryDTO(summary))
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
