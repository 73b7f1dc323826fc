package usecases

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"samplr/pkg/consts"
	"samplr/pkg/entities"
)

func entry(title string) entities.NotificationEntry {
	return entities.NotificationEntry{Type: consts.NotificationEventAdded, Title: title, Message: title}
}

func TestAppendFillsDefaults(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	stored, err := h.log.Append(ctx, testProfile, entities.NotificationEntry{
		Type: consts.NotificationEventReminder, Title: "Soon", Message: "Starts in an hour", IsRead: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)
	require.False(t, stored.CreatedAt.IsZero())
	require.False(t, stored.IsRead)

	_, err = h.log.Append(ctx, testProfile, entities.NotificationEntry{Type: "promo", Title: "x"})
	require.ErrorIs(t, err, entities.ErrInvalidInput)

	_, err = h.log.Append(ctx, "ghost", entry("x"))
	require.ErrorIs(t, err, entities.ErrProfileNotFound)
}

func TestAppendEvictsOldest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	for i := 0; i <= consts.NotificationLogCapacity; i++ {
		_, err := h.log.Append(ctx, testProfile, entry(fmt.Sprintf("n%d", i)))
		require.NoError(t, err)
	}

	entries, err := h.log.List(ctx, testProfile, 0)
	require.NoError(t, err)
	require.Len(t, entries, consts.NotificationLogCapacity)
	require.Equal(t, fmt.Sprintf("n%d", consts.NotificationLogCapacity), entries[0].Title)
	require.Equal(t, "n1", entries[len(entries)-1].Title)
	for _, e := range entries {
		require.NotEqual(t, "n0", e.Title)
	}
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	// a second log over the same store stands in for another process
	conf := testConf()
	conf.Ledger.CASRetries = 50
	first := NewNotificationLog(h.store, conf)
	second := NewNotificationLog(h.store, conf)

	const perWriter = 20
	var wg sync.WaitGroup
	for i := 0; i < perWriter; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := first.Append(ctx, testProfile, entry(fmt.Sprintf("a%d", i)))
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := second.Append(ctx, testProfile, entry(fmt.Sprintf("b%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := h.log.List(ctx, testProfile, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2*perWriter)
}

func TestMarkReadDeleteClear(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	var ids []string
	for i := 0; i < 3; i++ {
		stored, err := h.log.Append(ctx, testProfile, entry(fmt.Sprintf("n%d", i)))
		require.NoError(t, err)
		ids = append(ids, stored.ID)
	}

	require.NoError(t, h.log.MarkRead(ctx, testProfile, ids[1]))
	require.ErrorIs(t, h.log.MarkRead(ctx, testProfile, "missing"), entities.ErrNotificationNotFound)

	count, err := h.log.UnreadCount(ctx, testProfile)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	unread, err := h.log.ListUnread(ctx, testProfile, 1)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, ids[2], unread[0].ID)

	require.NoError(t, h.log.Delete(ctx, testProfile, ids[2]))
	require.ErrorIs(t, h.log.Delete(ctx, testProfile, ids[2]), entities.ErrNotificationNotFound)

	marked, err := h.log.MarkAllRead(ctx, testProfile)
	require.NoError(t, err)
	require.Equal(t, 1, marked)

	entries, err := h.log.List(ctx, testProfile, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ids[1], entries[0].ID)
	for _, e := range entries {
		require.True(t, e.IsRead)
	}

	require.NoError(t, h.log.Clear(ctx, testProfile))
	entries, err = h.log.List(ctx, testProfile, 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestUndecodableBlobsAreSkipped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0)

	stored, err := h.log.Append(ctx, testProfile, entry("kept"))
	require.NoError(t, err)

	blobs := append(h.store.RawNotifications(testProfile), "{broken", "")
	h.store.SetRawNotifications(testProfile, blobs)

	entries, err := h.log.List(ctx, testProfile, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, stored.ID, entries[0].ID)

	_, err = h.log.Append(ctx, testProfile, entry("next"))
	require.NoError(t, err)
	require.Len(t, h.store.RawNotifications(testProfile), 2)
}
