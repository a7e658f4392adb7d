package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example.com/lastseen/internal/domain"
	"example.com/lastseen/internal/events"
	"example.com/lastseen/internal/observability"
)

// ObservationStore is the persistence surface needed by the handler.
type ObservationStore interface {
	UpsertObservation(ctx context.Context, obs domain.DailyObservation) error
}

// ObservationHandler folds ping.recorded events into client_daily rows.
// Multiple pings for the same client-day accumulate: boolean flags OR
// together on conflict, so ordering within a day does not matter.
type ObservationHandler struct {
	store ObservationStore
}

// NewObservationHandler constructs a handler backed by the provided store.
func NewObservationHandler(store ObservationStore) *ObservationHandler {
	return &ObservationHandler{store: store}
}

// Handle converts a ping event into a single-day observation upsert.
func (h *ObservationHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != "ping.recorded" {
		// Unknown event types are acknowledged so the topic can evolve.
		return nil
	}

	var ping events.PingRecorded
	if err := json.Unmarshal(msg.Payload, &ping); err != nil {
		return fmt.Errorf("unmarshal ping: %w", err)
	}
	if ping.ClientID == "" {
		return errors.New("ping missing client_id")
	}
	tenantID := ping.TenantID
	if tenantID == "" {
		tenantID = msg.TenantID
	}
	if tenantID == "" {
		return errors.New("ping missing tenant_id")
	}

	recordedAt := ping.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = msg.Timestamp
	}

	obs := domain.DailyObservation{
		TenantID:     tenantID,
		ClientID:     ping.ClientID,
		Date:         domain.Day(recordedAt),
		Seen:         true,
		SessionStart: ping.PingType == events.PingTypeSessionStart,
		SessionEnd:   ping.PingType == events.PingTypeSessionEnd,
		PingCount:    1,
		Attributes: domain.ClientAttributes{
			OS:         ping.OS,
			OSVersion:  ping.OSVersion,
			AppVersion: ping.AppVersion,
			AppBuildID: ping.AppBuildID,
			Channel:    ping.Channel,
			Locale:     ping.Locale,
		},
	}

	if err := h.store.UpsertObservation(ctx, obs); err != nil {
		return err
	}
	observability.RecordObservationIngested(time.Now().UTC())
	return nil
}
