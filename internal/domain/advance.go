// Package domain defines the business logic for the lastseen service.
package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"example.com/lastseen/internal/window"
)

var (
	// ErrSnapshotDateGap indicates the previous snapshot is not exactly one
	// day before the target date.
	ErrSnapshotDateGap = errors.New("previous snapshot is not one day before target date")
	// ErrMaskOverflow indicates a stored mask has bits beyond the window width.
	ErrMaskOverflow = errors.New("stored mask exceeds window width")
	// ErrClientNotFound is returned when a client has no snapshot record.
	ErrClientNotFound = errors.New("client not found")
)

// AgedOutClient identifies a client dropped from the tracked set because no
// criterion retained activity inside the window.
type AgedOutClient struct {
	ClientID     string
	LastSeenDate time.Time
}

// AdvanceResult is the outcome of advancing one tenant-day.
type AdvanceResult struct {
	Records    []ClientRecord
	NewClients int
	AgedOut    []AgedOutClient
}

// AdvanceDay computes the snapshot for date from the previous day's snapshot
// and that date's observations. Every client is advanced independently: its
// masks are shifted one day older and OR-ed with the day's fresh flags.
// Clients whose masks all reach zero with no observation are dropped.
func AdvanceDay(w window.Window, previous []ClientRecord, observations []DailyObservation, date time.Time) (AdvanceResult, error) {
	date = Day(date)
	yesterday := date.AddDate(0, 0, -1)

	prevByClient := make(map[string]ClientRecord, len(previous))
	for _, rec := range previous {
		if !SameDay(rec.AsOfDate, yesterday) {
			return AdvanceResult{}, fmt.Errorf("%w: snapshot as of %s, target %s",
				ErrSnapshotDateGap, Day(rec.AsOfDate).Format("2006-01-02"), date.Format("2006-01-02"))
		}
		if w.Truncate(rec.DaysSeenBits) != rec.DaysSeenBits ||
			w.Truncate(rec.DaysSessionStartBits) != rec.DaysSessionStartBits ||
			w.Truncate(rec.DaysSessionEndBits) != rec.DaysSessionEndBits {
			return AdvanceResult{}, fmt.Errorf("%w: client %s", ErrMaskOverflow, rec.ClientID)
		}
		prevByClient[rec.ClientID] = rec
	}

	obsByClient := make(map[string]DailyObservation, len(observations))
	for _, obs := range observations {
		if !SameDay(obs.Date, date) {
			return AdvanceResult{}, fmt.Errorf("%w: observation dated %s, target %s",
				ErrSnapshotDateGap, Day(obs.Date).Format("2006-01-02"), date.Format("2006-01-02"))
		}
		obsByClient[obs.ClientID] = obs
	}

	clientIDs := make([]string, 0, len(prevByClient)+len(obsByClient))
	for id := range prevByClient {
		clientIDs = append(clientIDs, id)
	}
	for id := range obsByClient {
		if _, known := prevByClient[id]; !known {
			clientIDs = append(clientIDs, id)
		}
	}
	sort.Strings(clientIDs)

	result := AdvanceResult{Records: make([]ClientRecord, 0, len(clientIDs))}
	for _, id := range clientIDs {
		prev, hadPrev := prevByClient[id]
		obs, hadObs := obsByClient[id]

		next := ClientRecord{
			TenantID:             firstNonEmpty(prev.TenantID, obs.TenantID),
			ClientID:             id,
			AsOfDate:             date,
			DaysSeenBits:         w.Advance(prev.DaysSeenBits, obs.Seen),
			DaysSessionStartBits: w.Advance(prev.DaysSessionStartBits, obs.SessionStart),
			DaysSessionEndBits:   w.Advance(prev.DaysSessionEndBits, obs.SessionEnd),
			Attributes:           obs.Attributes.merge(prev.Attributes),
			FirstSeenDate:        prev.FirstSeenDate,
		}
		if next.FirstSeenDate.IsZero() {
			next.FirstSeenDate = date
		}

		if !next.Tracked() && !hadObs {
			aged := AgedOutClient{ClientID: id}
			if hadPrev {
				if last, ok := prev.LastSeenDate(); ok {
					aged.LastSeenDate = last
				}
			}
			result.AgedOut = append(result.AgedOut, aged)
			continue
		}

		if !hadPrev {
			result.NewClients++
		}
		result.Records = append(result.Records, next)
	}

	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
