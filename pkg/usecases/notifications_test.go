package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"samplr/pkg/consts"
	"samplr/pkg/entities"
	"samplr/pkg/repo/driver/medium"
)

func TestNotifyFansOut(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	stored, err := h.notifications.Notify(ctx, testProfile, entities.NotificationRequest{
		Type:    consts.NotificationFavoriteBrandUpdate,
		Title:   "New drop",
		Message: "Your favorite brand added an event",
		Data:    map[string]interface{}{"brandId": "b1"},
	})
	require.NoError(t, err)

	live := h.live.entries(t, testProfile)
	require.Len(t, live, 1)
	require.Equal(t, stored.ID, live[0].ID)

	h.drain(t)
	pushed := h.sender.messages()
	require.Len(t, pushed, 1)
	require.Equal(t, "b1", pushed[0].Data["brandId"])

	listed, err := h.notifications.GetNotifications(ctx, testProfile, 10, true)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestNotifyRejectsUnknownType(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.notifications.Notify(context.Background(), testProfile, entities.NotificationRequest{
		Type: "spam", Title: "t", Message: "m",
	})
	require.ErrorIs(t, err, entities.ErrInvalidInput)
	require.Empty(t, h.live.entries(t, testProfile))
}

func TestEmitToleratesOfflineAccount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)
	notifications := NewNotificationUsecases(h.log, h.store, medium.NewWebSocket(), nil)

	stored, err := notifications.Emit(ctx, testProfile, entry("offline"))
	require.NoError(t, err)

	entries, err := h.log.List(ctx, testProfile, 0)
	require.NoError(t, err)
	require.Equal(t, stored.ID, entries[0].ID)
}

func TestResolveProfileID(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	tests := []struct {
		name    string
		userID  string
		want    string
		wantErr error
	}{
		{name: "profile id", userID: testProfile, want: testProfile},
		{name: "auth id", userID: testAuth, want: testProfile},
		{name: "blank", userID: " ", wantErr: entities.ErrInvalidInput},
		{name: "unknown", userID: "ghost", wantErr: entities.ErrProfileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.notifications.ResolveProfileID(ctx, tt.userID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRegisterDeviceAndPreferences(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	require.ErrorIs(t, h.notifications.RegisterDevice(ctx, entities.FCM{ProfileID: testProfile}), entities.ErrInvalidInput)
	require.NoError(t, h.notifications.RegisterDevice(ctx, entities.FCM{ProfileID: testProfile, DeviceID: "token-1"}))

	tokens, err := h.store.GetFCMTokens(ctx, testProfile)
	require.NoError(t, err)
	require.Equal(t, []string{"token-1"}, tokens)

	require.ErrorIs(t, h.notifications.UpdatePreferences(ctx, testProfile, nil), entities.ErrInvalidInput)
	require.NoError(t, h.notifications.UpdatePreferences(ctx, testProfile, map[string]bool{consts.PreferencePush: false}))

	// push is now off, so dispatch reports not delivered
	require.False(t, h.dispatcher.Dispatch(ctx, testProfile, pushEntry()))
}
