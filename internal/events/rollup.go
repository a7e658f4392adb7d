// Package events defines the payloads published through the outbox.
package events

import "time"

// RollupCompleted is emitted once per tenant-day after a snapshot is
// materialized.
type RollupCompleted struct {
	RollupID       string    `json:"rollup_id"`
	TenantID       string    `json:"tenant_id"`
	AsOfDate       string    `json:"as_of_date"`
	ClientsTracked int       `json:"clients_tracked"`
	ClientsNew     int       `json:"clients_new"`
	ClientsAgedOut int       `json:"clients_aged_out"`
	CompletedAt    time.Time `json:"completed_at"`
}

// ClientAgedOut is emitted for each client dropped from the tracked set
// because no criterion retained activity inside the window.
type ClientAgedOut struct {
	TenantID     string `json:"tenant_id"`
	ClientID     string `json:"client_id"`
	AsOfDate     string `json:"as_of_date"`
	LastSeenDate string `json:"last_seen_date,omitempty"`
}

// PingRecorded is the inbound telemetry event consumed into client_daily.
type PingRecorded struct {
	TenantID   string    `json:"tenant_id"`
	ClientID   string    `json:"client_id"`
	RecordedAt time.Time `json:"recorded_at"`
	PingType   string    `json:"ping_type"`
	OS         string    `json:"os,omitempty"`
	OSVersion  string    `json:"os_version,omitempty"`
	AppVersion string    `json:"app_version,omitempty"`
	AppBuildID string    `json:"app_build_id,omitempty"`
	Channel    string    `json:"channel,omitempty"`
	Locale     string    `json:"locale,omitempty"`
}

// Ping types that map onto the session criteria.
const (
	PingTypeBaseline     = "baseline"
	PingTypeSessionStart = "session_start"
	PingTypeSessionEnd   = "session_end"
)
