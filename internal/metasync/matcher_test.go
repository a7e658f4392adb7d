package metasync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*", "client_last_seen", true},
		{"client_*", "client_last_seen", true},
		{"client_*", "outbox", false},
		{"*_v1", "clients_daily_v1", true},
		{"*_v1", "clients_daily_v2", false},
		{"client?daily", "client_daily", true},
		{"client?daily", "clientdaily", false},
		{"client_daily", "client_daily", true},
		{"client_daily", "client_daily_v2", false},
		{"**seen**", "client_last_seen", true},
		{"", "", true},
		{"", "x", false},
		{"?", "", false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, Match(tc.pattern, tc.name), "pattern=%q name=%q", tc.pattern, tc.name)
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	candidates := []string{"outbox", "client_daily", "client_last_seen", "outbox_dlq"}
	require.Equal(t, []string{"client_daily", "client_last_seen"}, Filter("client_*", candidates))
	require.Equal(t, candidates, Filter("*", candidates))
	require.Empty(t, Filter("nope_*", candidates))
}
