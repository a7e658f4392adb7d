package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/lastseen/internal/auth"
	"example.com/lastseen/internal/domain"
	"example.com/lastseen/internal/persistence"
)

var asOf = time.Date(2025, time.November, 11, 0, 0, 0, 0, time.UTC)

type mockRepo struct {
	records   map[string]domain.ClientRecord
	listed    []domain.ClientRecord
	next      *domain.Cursor
	latest    time.Time
	hasLatest bool
}

func (m *mockRepo) LatestRecord(_ context.Context, _, clientID string) (*domain.ClientRecord, error) {
	rec, ok := m.records[clientID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *mockRepo) ListRecords(_ context.Context, _ string, _ time.Time, _ *domain.Cursor, _ int) ([]domain.ClientRecord, *domain.Cursor, error) {
	return m.listed, m.next, nil
}

func (m *mockRepo) LatestSnapshotDate(_ context.Context, _ string) (time.Time, bool, error) {
	return m.latest, m.hasLatest, nil
}

type mockRunner struct {
	tenantID string
	target   time.Time
	days     int
}

func (m *mockRunner) CatchUp(_ context.Context, tenantID string, target time.Time) (int, error) {
	m.tenantID = tenantID
	m.target = target
	return m.days, nil
}

func authedRequest(t *testing.T, method, target string, body string, scopes ...string) *http.Request {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)

	scopeSet := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		scopeSet[s] = struct{}{}
	}
	claims := &auth.Claims{Subject: "svc-test", TenantID: "tenant-1", Scopes: scopeSet}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func newTestHandler(repo *mockRepo, runner *mockRunner) *Handler {
	if repo == nil {
		repo = &mockRepo{}
	}
	if runner == nil {
		runner = &mockRunner{}
	}
	return NewHandler(domain.NewService(repo), runner)
}

func TestGetClientSuccess(t *testing.T) {
	repo := &mockRepo{records: map[string]domain.ClientRecord{
		"client-a": {
			TenantID:             "tenant-1",
			ClientID:             "client-a",
			AsOfDate:             asOf,
			DaysSeenBits:         0b0110,
			DaysSessionStartBits: 0b0010,
			Attributes:           domain.ClientAttributes{OS: "Android", AppVersion: "121.0"},
			FirstSeenDate:        asOf.AddDate(0, 0, -10),
		},
	}}
	handler := newTestHandler(repo, nil)

	rec := httptest.NewRecorder()
	handler.clientByID(rec, authedRequest(t, http.MethodGet, "/v1/clients/client-a", "", auth.ScopeTelemetryRead))

	require.Equal(t, http.StatusOK, rec.Code)

	var view ClientView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "client-a", view.ClientID)
	require.Equal(t, uint32(0b0110), view.Seen.Bits)
	require.Equal(t, 1, view.Seen.DaysSinceSeen)
	require.Equal(t, 2, view.Seen.ActiveDays)
	require.Equal(t, "2025-11-10", view.LastSeenDate)
	require.Equal(t, "Android", view.OS)
}

func TestGetClientNotFound(t *testing.T) {
	handler := newTestHandler(nil, nil)

	rec := httptest.NewRecorder()
	handler.clientByID(rec, authedRequest(t, http.MethodGet, "/v1/clients/missing", "", auth.ScopeTelemetryRead))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetClientRequiresScope(t *testing.T) {
	handler := newTestHandler(nil, nil)

	rec := httptest.NewRecorder()
	handler.clientByID(rec, authedRequest(t, http.MethodGet, "/v1/clients/client-a", ""))

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetClientRequiresAuth(t *testing.T) {
	handler := newTestHandler(nil, nil)

	rec := httptest.NewRecorder()
	handler.clientByID(rec, httptest.NewRequest(http.MethodGet, "/v1/clients/client-a", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListClientsValidatesAsOf(t *testing.T) {
	handler := newTestHandler(nil, nil)

	rec := httptest.NewRecorder()
	handler.listClients(rec, authedRequest(t, http.MethodGet, "/v1/clients", "", auth.ScopeTelemetryRead))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.listClients(rec, authedRequest(t, http.MethodGet, "/v1/clients?as_of=11-11-2025", "", auth.ScopeTelemetryRead))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListClientsReturnsCursor(t *testing.T) {
	repo := &mockRepo{
		listed: []domain.ClientRecord{
			{TenantID: "tenant-1", ClientID: "client-a", AsOfDate: asOf, DaysSeenBits: 0b0001},
		},
		next: &domain.Cursor{AsOfDate: asOf, ClientID: "client-a"},
	}
	handler := newTestHandler(repo, nil)

	rec := httptest.NewRecorder()
	handler.listClients(rec, authedRequest(t, http.MethodGet, "/v1/clients?as_of=2025-11-11", "", auth.ScopeTelemetryRead))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListClientsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	require.NotEmpty(t, resp.NextCursor)

	decoded, err := persistence.DecodeCursor(resp.NextCursor)
	require.NoError(t, err)
	require.Equal(t, "client-a", decoded.ClientID)
}

func TestListClientsRejectsMismatchedCursor(t *testing.T) {
	handler := newTestHandler(nil, nil)

	stale := persistence.EncodeCursor(&domain.Cursor{AsOfDate: asOf.AddDate(0, 0, -1), ClientID: "client-a"})
	rec := httptest.NewRecorder()
	handler.listClients(rec, authedRequest(t, http.MethodGet, "/v1/clients?as_of=2025-11-11&cursor="+stale, "", auth.ScopeTelemetryRead))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerRollup(t *testing.T) {
	runner := &mockRunner{days: 3}
	handler := newTestHandler(nil, runner)

	rec := httptest.NewRecorder()
	handler.triggerRollup(rec, authedRequest(t, http.MethodPost, "/v1/rollups", `{"target_date":"2025-11-11"}`, auth.ScopeRollupsRun))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "tenant-1", runner.tenantID)
	require.True(t, runner.target.Equal(asOf))

	var resp TriggerRollupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.DaysAdvanced)
}

func TestTriggerRollupRequiresRunScope(t *testing.T) {
	handler := newTestHandler(nil, nil)

	rec := httptest.NewRecorder()
	handler.triggerRollup(rec, authedRequest(t, http.MethodPost, "/v1/rollups", `{"target_date":"2025-11-11"}`, auth.ScopeTelemetryRead))

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRollupStatus(t *testing.T) {
	repo := &mockRepo{latest: asOf, hasLatest: true}
	handler := newTestHandler(repo, nil)

	rec := httptest.NewRecorder()
	handler.rollupStatus(rec, authedRequest(t, http.MethodGet, "/v1/rollups/status", "", auth.ScopeTelemetryRead))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp RollupStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "2025-11-11", resp.LatestSnapshotDate)
}

func TestRollupStatusEmpty(t *testing.T) {
	handler := newTestHandler(nil, nil)

	rec := httptest.NewRecorder()
	handler.rollupStatus(rec, authedRequest(t, http.MethodGet, "/v1/rollups/status", "", auth.ScopeTelemetryRead))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp RollupStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.LatestSnapshotDate)
}
