package usecases

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"samplr/pkg/consts"
	"samplr/pkg/entities"
)

func pushEntry() entities.NotificationEntry {
	return entities.NotificationEntry{
		ID:      "n1",
		Type:    consts.NotificationCheckIn,
		Title:   "Check-in confirmed",
		Message: "You earned 75 points",
		Data:    map[string]interface{}{"eventId": "e1", "pointsEarned": 75, "nested": map[string]int{"a": 1}},
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name   string
		sender *fakeSender
		prefs  map[string]bool
		want   bool
	}{
		{name: "delivered", sender: &fakeSender{}, want: true},
		{name: "push disabled", sender: &fakeSender{}, prefs: map[string]bool{consts.PreferencePush: false}, want: false},
		{name: "sender error", sender: &fakeSender{err: errors.New("fcm 500")}, want: false},
		{name: "no device", sender: &fakeSender{err: fmt.Errorf("x: %w", entities.ErrNoPushDevice)}, want: false},
		{name: "sender panic", sender: &fakeSender{panics: true}, want: false},
		{name: "sender timeout", sender: &fakeSender{block: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, 0)
			if tt.prefs != nil {
				require.NoError(t, h.store.UpdatePreferences(ctx, testProfile, tt.prefs))
			}
			dispatcher := NewDispatcher(h.store, tt.sender, testConf())

			start := time.Now()
			got := dispatcher.Dispatch(ctx, testProfile, pushEntry())
			require.Equal(t, tt.want, got)
			require.Less(t, time.Since(start), 2*time.Second)

			if tt.name == "push disabled" {
				require.Empty(t, tt.sender.messages())
			}
		})
	}
}

func TestDispatchStringifiesData(t *testing.T) {
	h := newHarness(t, 0)
	sender := &fakeSender{}
	dispatcher := NewDispatcher(h.store, sender, testConf())

	require.True(t, dispatcher.Dispatch(context.Background(), testAuth, pushEntry()))

	sent := sender.messages()
	require.Len(t, sent, 1)
	require.Equal(t, testProfile, sent[0].AccountID)
	require.Equal(t, consts.NotificationCheckIn, sent[0].Type)
	require.Equal(t, "Check-in confirmed", sent[0].Title)
	require.Equal(t, map[string]string{"eventId": "e1", "pointsEarned": "75"}, sent[0].Data)
}

func TestDispatchUnknownAccount(t *testing.T) {
	h := newHarness(t, 0)
	require.False(t, h.dispatcher.Dispatch(context.Background(), "ghost", pushEntry()))
}

func TestDispatchAsyncDetachesFromCaller(t *testing.T) {
	h := newHarness(t, 0)

	for i := 0; i < 10; i++ {
		h.dispatcher.DispatchAsync(testProfile, pushEntry())
	}

	h.drain(t)
	require.Len(t, h.sender.messages(), 10)
}

type callerKey struct{}

func TestEmitDoesNotRetainRequestContext(t *testing.T) {
	h := newHarness(t, 0)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), callerKey{}, "request"))
	for i := 0; i < 5; i++ {
		_, err := h.notifications.Emit(ctx, testProfile, pushEntry())
		require.NoError(t, err)
	}
	cancel()

	h.drain(t)
	require.Len(t, h.sender.messages(), 5)
	for _, sendCtx := range h.sender.contexts() {
		require.Nil(t, sendCtx.Value(callerKey{}))
	}
}

func TestDrainHonoursDeadline(t *testing.T) {
	h := newHarness(t, 0)
	dispatcher := NewDispatcher(h.store, &fakeSender{block: true}, testConf())
	dispatcher.DispatchAsync(testProfile, pushEntry())

	expired, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, dispatcher.Drain(expired))

	// the dispatch itself gives up at the push timeout
	ctx, cancelWait := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelWait()
	require.NoError(t, dispatcher.Drain(ctx))
}
