package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"samplr/pkg/consts"
	"samplr/pkg/entities"
)

func newSeeded(t *testing.T) *Store {
	t.Helper()
	store := New()
	require.NoError(t, store.UpsertAccount(context.Background(), entities.UserAccount{
		AuthID: "auth-1", ProfileID: "profile-1",
	}))
	return store
}

func TestConditionalCreate(t *testing.T) {
	ctx := context.Background()
	store := newSeeded(t)

	_, err := store.CreateCheckIn(ctx, entities.CheckInRecord{UserID: "profile-1", EventID: "e1", CheckInCode: "c"})
	require.NoError(t, err)

	_, err = store.CreateCheckIn(ctx, entities.CheckInRecord{UserID: "profile-1", EventID: "e1", CheckInCode: "c"})
	require.ErrorIs(t, err, entities.ErrDuplicateAccrual)

	// reviews are a separate ledger
	_, err = store.CreateReview(ctx, entities.ReviewRecord{UserID: "profile-1", EventID: "e1", Rating: 4})
	require.NoError(t, err)

	found, err := store.FindAccrual(ctx, "profile-1", "e1", consts.KindReview)
	require.NoError(t, err)
	require.Equal(t, consts.KindReview, found.Kind)

	_, err = store.FindAccrual(ctx, "profile-1", "e2", consts.KindCheckIn)
	require.ErrorIs(t, err, entities.ErrNotFound)
}

func TestConcurrentCreateHasOneWinner(t *testing.T) {
	ctx := context.Background()
	store := newSeeded(t)

	const racers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateCheckIn(ctx, entities.CheckInRecord{UserID: "profile-1", EventID: "e1"})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
}

func TestAddPointsAndSetTotals(t *testing.T) {
	ctx := context.Background()
	store := newSeeded(t)

	before, after, err := store.AddPoints(ctx, "profile-1", 75, consts.KindCheckIn)
	require.NoError(t, err)
	require.Equal(t, entities.Totals{}, before)
	require.Equal(t, entities.Totals{TotalPoints: 75, TotalEvents: 1}, after)

	_, _, err = store.AddPoints(ctx, "missing", 10, consts.KindCheckIn)
	require.ErrorIs(t, err, entities.ErrProfileNotFound)

	err = store.SetTotals(ctx, "profile-1", entities.Totals{}, entities.Totals{TotalPoints: 1})
	require.ErrorIs(t, err, entities.ErrContention)

	require.NoError(t, store.SetTotals(ctx, "profile-1", after, entities.Totals{TotalPoints: 100, TotalEvents: 2}))
	account, err := store.GetProfile(ctx, "auth-1")
	require.NoError(t, err)
	require.Equal(t, int64(100), account.TotalPoints)
	require.Equal(t, 2, account.TotalEvents)
}

func TestGetProfileByAuthID(t *testing.T) {
	ctx := context.Background()
	store := newSeeded(t)

	byProfile, err := store.GetProfile(ctx, "profile-1")
	require.NoError(t, err)
	byAuth, err := store.GetProfile(ctx, "auth-1")
	require.NoError(t, err)
	require.Equal(t, byProfile.ProfileID, byAuth.ProfileID)

	_, err = store.GetProfile(ctx, "nobody")
	require.ErrorIs(t, err, entities.ErrProfileNotFound)
}

func TestNotificationLogVersioning(t *testing.T) {
	ctx := context.Background()
	store := newSeeded(t)

	current, err := store.GetNotificationLog(ctx, "profile-1")
	require.NoError(t, err)
	require.Empty(t, current.Entries)

	entries := []entities.NotificationEntry{{ID: "n1", Type: consts.NotificationCheckIn}}
	require.NoError(t, store.SaveNotificationLog(ctx, "profile-1", entries, current.Version))

	// a writer holding the old version loses
	err = store.SaveNotificationLog(ctx, "profile-1", nil, current.Version)
	require.ErrorIs(t, err, entities.ErrContention)

	require.Len(t, store.RawNotifications("profile-1"), 1)
}

func TestPreferencesAndDevices(t *testing.T) {
	ctx := context.Background()
	store := newSeeded(t)

	require.NoError(t, store.UpdatePreferences(ctx, "profile-1", map[string]bool{consts.PreferencePush: false}))
	account, err := store.GetProfile(ctx, "profile-1")
	require.NoError(t, err)
	require.False(t, account.PushEnabled())

	require.ErrorIs(t, store.UpdatePreferences(ctx, "missing", map[string]bool{"push": true}), entities.ErrProfileNotFound)

	require.NoError(t, store.StoreFCMToken(ctx, entities.FCM{ProfileID: "profile-1", DeviceID: "d1"}))
	require.NoError(t, store.StoreFCMToken(ctx, entities.FCM{ProfileID: "profile-1", DeviceID: "d1"}))
	tokens, err := store.GetFCMTokens(ctx, "profile-1")
	require.NoError(t, err)
	require.Equal(t, []string{"d1"}, tokens)
}
