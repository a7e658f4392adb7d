package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/lastseen/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	in := &domain.Cursor{
		AsOfDate: time.Date(2025, time.November, 11, 0, 0, 0, 0, time.UTC),
		ClientID: "client-42",
	}

	out, err := DecodeCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.NotNil(t, out)
	require.True(t, in.AsOfDate.Equal(out.AsOfDate))
	require.Equal(t, in.ClientID, out.ClientID)
}

func TestDecodeCursorEmptyToken(t *testing.T) {
	out, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not-base64!!")
	require.Error(t, err)

	_, err = DecodeCursor(EncodeCursor(&domain.Cursor{AsOfDate: time.Now()}))
	require.Error(t, err, "missing client id")
}

func TestEncodeCursorNil(t *testing.T) {
	require.Empty(t, EncodeCursor(nil))
}
