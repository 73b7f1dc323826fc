package entities

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"samplr/pkg/consts"
)

func TestTotalsApply(t *testing.T) {
	start := Totals{TotalPoints: 950, TotalEvents: 3, TotalReviews: 1}

	checkIn, err := start.Apply(75, consts.KindCheckIn)
	require.NoError(t, err)
	require.Equal(t, Totals{TotalPoints: 1025, TotalEvents: 4, TotalReviews: 1}, checkIn)

	review, err := start.Apply(20, consts.KindReview)
	require.NoError(t, err)
	require.Equal(t, Totals{TotalPoints: 970, TotalEvents: 3, TotalReviews: 2}, review)

	require.Equal(t, Totals{TotalPoints: 950, TotalEvents: 3, TotalReviews: 1}, start)
}

func TestTotalsApplyNeverWraps(t *testing.T) {
	tests := []struct {
		name  string
		start int64
		delta int64
		ok    bool
	}{
		{name: "fills to max", start: 10, delta: math.MaxInt64 - 10, ok: true},
		{name: "one past max", start: 10, delta: math.MaxInt64 - 9},
		{name: "max delta", start: 10, delta: math.MaxInt64},
		{name: "negative delta", start: 10, delta: -1},
		{name: "zero at max", start: math.MaxInt64, delta: 0, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := Totals{TotalPoints: tt.start}
			next, err := start.Apply(tt.delta, consts.KindCheckIn)
			if tt.ok {
				require.NoError(t, err)
				require.Equal(t, tt.start+tt.delta, next.TotalPoints)
				return
			}
			require.ErrorIs(t, err, ErrPointsOverflow)
			require.ErrorIs(t, err, ErrInvalidInput)
			require.Equal(t, start, next)
		})
	}
}

func TestPushEnabledDefaultsOn(t *testing.T) {
	tests := []struct {
		name  string
		prefs map[string]bool
		want  bool
	}{
		{name: "nil map", prefs: nil, want: true},
		{name: "other toggles only", prefs: map[string]bool{"email": false}, want: true},
		{name: "explicitly off", prefs: map[string]bool{consts.PreferencePush: false}, want: false},
		{name: "explicitly on", prefs: map[string]bool{consts.PreferencePush: true}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := UserAccount{NotificationPreferences: tt.prefs}
			require.Equal(t, tt.want, account.PushEnabled())
		})
	}
}

func TestNotificationBlobsSkipGarbage(t *testing.T) {
	entries := []NotificationEntry{
		{ID: "n2", Type: consts.NotificationTierChanged, Title: "Tier up", CreatedAt: time.Unix(20, 0).UTC()},
		{ID: "n1", Type: consts.NotificationCheckIn, Title: "Checked in", CreatedAt: time.Unix(10, 0).UTC()},
	}
	blobs, err := EncodeNotificationBlobs(entries)
	require.NoError(t, err)

	stored := []string{blobs[0], "{not json", `{"title":"no id"}`, blobs[1]}
	decoded, skipped := DecodeNotificationBlobs(stored)

	require.Equal(t, 2, skipped)
	require.Len(t, decoded, 2)
	require.Equal(t, "n2", decoded[0].ID)
	require.Equal(t, "n1", decoded[1].ID)
}
