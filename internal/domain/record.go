package domain

import (
	"time"

	"example.com/lastseen/internal/window"
)

// ClientAttributes are the descriptive fields reported by telemetry pings.
// They ride along with the rolling masks and are not part of the window
// algorithm itself.
type ClientAttributes struct {
	OS         string
	OSVersion  string
	AppVersion string
	AppBuildID string
	Channel    string
	Locale     string
}

// ClientRecord is one row of the client_last_seen snapshot: the rolling
// activity masks for a client as of a single day, plus carried attributes.
type ClientRecord struct {
	TenantID             string
	ClientID             string
	AsOfDate             time.Time
	DaysSeenBits         window.Bitmask
	DaysSessionStartBits window.Bitmask
	DaysSessionEndBits   window.Bitmask
	Attributes           ClientAttributes
	FirstSeenDate        time.Time
	CreatedAt            time.Time
}

// Tracked reports whether any criterion still has activity inside the window.
func (r ClientRecord) Tracked() bool {
	return r.DaysSeenBits != 0 || r.DaysSessionStartBits != 0 || r.DaysSessionEndBits != 0
}

// LastSeenDate returns the most recent day the client was seen, derived from
// the seen mask. The second return is false when the mask is empty.
func (r ClientRecord) LastSeenDate() (time.Time, bool) {
	offset := r.DaysSeenBits.DaysSinceSeen()
	if offset < 0 {
		return time.Time{}, false
	}
	return r.AsOfDate.AddDate(0, 0, -offset), true
}

// DailyObservation is one row of client_daily: the single-day activity flags
// for a client under each criterion, written by the ingest consumer.
type DailyObservation struct {
	TenantID     string
	ClientID     string
	Date         time.Time
	Seen         bool
	SessionStart bool
	SessionEnd   bool
	PingCount    int
	Attributes   ClientAttributes
}

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDay returns the calendar day after d.
func NextDay(d time.Time) time.Time {
	return Day(d).AddDate(0, 0, 1)
}

// SameDay reports whether two timestamps fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

func coalesce(fresh, carried string) string {
	if fresh != "" {
		return fresh
	}
	return carried
}

// merge folds carried-forward attributes under the fresh observation,
// preferring the fresh value whenever one was reported.
func (a ClientAttributes) merge(carried ClientAttributes) ClientAttributes {
	return ClientAttributes{
		OS:         coalesce(a.OS, carried.OS),
		OSVersion:  coalesce(a.OSVersion, carried.OSVersion),
		AppVersion: coalesce(a.AppVersion, carried.AppVersion),
		AppBuildID: coalesce(a.AppBuildID, carried.AppBuildID),
		Channel:    coalesce(a.Channel, carried.Channel),
		Locale:     coalesce(a.Locale, carried.Locale),
	}
}
