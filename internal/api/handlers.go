// Package api exposes HTTP handlers for the lastseen service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/lastseen/internal/auth"
	"example.com/lastseen/internal/domain"
	"example.com/lastseen/internal/persistence"
	"example.com/lastseen/internal/window"
)

// RollupRunner triggers snapshot materialization for a tenant.
type RollupRunner interface {
	CatchUp(ctx context.Context, tenantID string, target time.Time) (int, error)
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	runner  RollupRunner
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, runner RollupRunner) *Handler {
	return &Handler{service: service, runner: runner}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/clients", h.listClients)
	mux.HandleFunc("/v1/clients/", h.clientByID)
	mux.HandleFunc("/v1/rollups", h.triggerRollup)
	mux.HandleFunc("/v1/rollups/status", h.rollupStatus)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) clientByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/clients/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing client id")
		return
	}

	claims, ok := requireScope(w, r, auth.ScopeTelemetryRead)
	if !ok {
		return
	}

	record, err := h.service.GetClient(r.Context(), claims.TenantID, id)
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "client not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toClientView(*record))
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := requireScope(w, r, auth.ScopeTelemetryRead)
	if !ok {
		return
	}

	asOfRaw := r.URL.Query().Get("as_of")
	if asOfRaw == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing as_of parameter")
		return
	}
	asOf, err := time.Parse("2006-01-02", asOfRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "as_of must be YYYY-MM-DD")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 500 {
				parsed = 500
			}
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}
	if cursor != nil && !domain.SameDay(cursor.AsOfDate, asOf) {
		writeError(w, http.StatusBadRequest, "validation_failed", "cursor does not match as_of")
		return
	}

	records, next, err := h.service.ListClients(r.Context(), claims.TenantID, asOf, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ClientView, 0, len(records))
	for _, rec := range records {
		items = append(items, toClientView(rec))
	}

	writeJSON(w, http.StatusOK, ListClientsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) triggerRollup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := requireScope(w, r, auth.ScopeRollupsRun)
	if !ok {
		return
	}

	var req TriggerRollupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	target, err := time.Parse("2006-01-02", req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "target_date must be YYYY-MM-DD")
		return
	}

	days, err := h.runner.CatchUp(r.Context(), claims.TenantID, target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, TriggerRollupResponse{
		TargetDate:   target.Format("2006-01-02"),
		DaysAdvanced: days,
	})
}

func (h *Handler) rollupStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := requireScope(w, r, auth.ScopeTelemetryRead)
	if !ok {
		return
	}

	latest, exists, err := h.service.SnapshotStatus(r.Context(), claims.TenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := RollupStatusResponse{}
	if exists {
		resp.LatestSnapshotDate = latest.Format("2006-01-02")
	}
	writeJSON(w, http.StatusOK, resp)
}

func requireScope(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	return claims, true
}

// TriggerRollupRequest is the payload for POST /v1/rollups.
type TriggerRollupRequest struct {
	TargetDate string `json:"target_date"`
}

// TriggerRollupResponse describes the response body for a rollup trigger.
type TriggerRollupResponse struct {
	TargetDate   string `json:"target_date"`
	DaysAdvanced int    `json:"days_advanced"`
}

// RollupStatusResponse reports the snapshot watermark.
type RollupStatusResponse struct {
	LatestSnapshotDate string `json:"latest_snapshot_date,omitempty"`
}

// CriterionView exposes one criterion's rolling mask with derived fields.
type CriterionView struct {
	Bits          uint32 `json:"bits"`
	DaysSinceSeen int    `json:"days_since_seen"`
	ActiveDays    int    `json:"active_days"`
}

// ClientView exposes full details about a client's rolling window record.
type ClientView struct {
	ClientID      string        `json:"client_id"`
	TenantID      string        `json:"tenant_id"`
	AsOfDate      string        `json:"as_of_date"`
	Seen          CriterionView `json:"seen"`
	SessionStart  CriterionView `json:"session_start"`
	SessionEnd    CriterionView `json:"session_end"`
	OS            string        `json:"os,omitempty"`
	OSVersion     string        `json:"os_version,omitempty"`
	AppVersion    string        `json:"app_version,omitempty"`
	AppBuildID    string        `json:"app_build_id,omitempty"`
	Channel       string        `json:"channel,omitempty"`
	Locale        string        `json:"locale,omitempty"`
	FirstSeenDate string        `json:"first_seen_date,omitempty"`
	LastSeenDate  string        `json:"last_seen_date,omitempty"`
}

// ListClientsResponse packages list results.
type ListClientsResponse struct {
	Items      []ClientView `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toClientView(rec domain.ClientRecord) ClientView {
	view := ClientView{
		ClientID:     rec.ClientID,
		TenantID:     rec.TenantID,
		AsOfDate:     rec.AsOfDate.Format("2006-01-02"),
		Seen:         toCriterionView(rec.DaysSeenBits),
		SessionStart: toCriterionView(rec.DaysSessionStartBits),
		SessionEnd:   toCriterionView(rec.DaysSessionEndBits),
		OS:           rec.Attributes.OS,
		OSVersion:    rec.Attributes.OSVersion,
		AppVersion:   rec.Attributes.AppVersion,
		AppBuildID:   rec.Attributes.AppBuildID,
		Channel:      rec.Attributes.Channel,
		Locale:       rec.Attributes.Locale,
	}
	if !rec.FirstSeenDate.IsZero() {
		view.FirstSeenDate = rec.FirstSeenDate.Format("2006-01-02")
	}
	if last, ok := rec.LastSeenDate(); ok {
		view.LastSeenDate = last.Format("2006-01-02")
	}
	return view
}

func toCriterionView(bits window.Bitmask) CriterionView {
	return CriterionView{
		Bits:          uint32(bits),
		DaysSinceSeen: bits.DaysSinceSeen(),
		ActiveDays:    bits.ActiveDayCount(),
	}
}
