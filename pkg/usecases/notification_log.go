package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuidLib "github.com/google/uuid"

	"samplr/config"
	"samplr/pkg/consts"
	"samplr/pkg/entities"
	"samplr/pkg/metrics"
	"samplr/pkg/repo"
	"samplr/utilities"
)

// NotificationLog is the bounded, newest-first notification list of each
// account. Every mutation rewrites the whole list; writers of one account are
// serialised in process and the write is committed against the version read.
type NotificationLog struct {
	repo     repo.NotificationRepoImply
	locks    *utilities.KeyedMutex
	capacity int
	retries  int
}

func NewNotificationLog(notificationRepo repo.NotificationRepoImply, conf *config.SamplrConfModel) *NotificationLog {
	capacity := conf.Notifications.Capacity
	if capacity <= 0 {
		capacity = consts.NotificationLogCapacity
	}
	retries := conf.Ledger.CASRetries
	if retries <= 0 {
		retries = 1
	}

	return &NotificationLog{
		repo:     notificationRepo,
		locks:    utilities.NewKeyedMutex(),
		capacity: capacity,
		retries:  retries,
	}
}

// mutate applies fn to the stored list and writes the result back, retrying
// when another process wrote in between.
func (l *NotificationLog) mutate(
	ctx context.Context, accountID string,
	fn func([]entities.NotificationEntry) ([]entities.NotificationEntry, error),
) error {
	log := utilities.NewLoggerWithFields("NotificationLog.mutate", map[string]interface{}{
		"account": accountID,
	})

	unlock := l.locks.Lock(accountID)
	defer unlock()

	for attempt := 0; attempt < l.retries; attempt++ {
		current, err := l.repo.GetNotificationLog(ctx, accountID)
		if err != nil {
			return err
		}

		next, err := fn(current.Entries)
		if err != nil {
			return err
		}

		err = l.repo.SaveNotificationLog(ctx, accountID, next, current.Version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, entities.ErrContention) {
			return err
		}

		log.Debugf("notification list changed underneath, retry %d", attempt+1)
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}

	return fmt.Errorf("notifications of %s: %w", accountID, entities.ErrContention)
}

// Append stores entry at the head of the list and evicts the oldest entries
// beyond capacity. A missing id and creation time are filled in.
func (l *NotificationLog) Append(
	ctx context.Context, accountID string, entry entities.NotificationEntry,
) (*entities.NotificationEntry, error) {
	if _, ok := consts.NotificationTypes[entry.Type]; !ok {
		return nil, fmt.Errorf("notification type %q: %w", entry.Type, entities.ErrInvalidInput)
	}
	if entry.ID == "" {
		entry.ID = uuidLib.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = utilities.TimeNow()
	}
	entry.IsRead = false

	err := l.mutate(ctx, accountID, func(entries []entities.NotificationEntry) ([]entities.NotificationEntry, error) {
		next := make([]entities.NotificationEntry, 0, len(entries)+1)
		next = append(next, entry)
		next = append(next, entries...)
		if len(next) > l.capacity {
			metrics.NotificationEvictions.Add(float64(len(next) - l.capacity))
			next = next[:l.capacity]
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (l *NotificationLog) MarkRead(ctx context.Context, accountID, notificationID string) error {
	return l.mutate(ctx, accountID, func(entries []entities.NotificationEntry) ([]entities.NotificationEntry, error) {
		for i := range entries {
			if entries[i].ID == notificationID {
				entries[i].IsRead = true
				return entries, nil
			}
		}
		return nil, fmt.Errorf("notification %s: %w", notificationID, entities.ErrNotificationNotFound)
	})
}

// MarkAllRead flips every unread entry and returns how many changed.
func (l *NotificationLog) MarkAllRead(ctx context.Context, accountID string) (int, error) {
	var marked int
	err := l.mutate(ctx, accountID, func(entries []entities.NotificationEntry) ([]entities.NotificationEntry, error) {
		marked = 0
		for i := range entries {
			if !entries[i].IsRead {
				entries[i].IsRead = true
				marked++
			}
		}
		return entries, nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

func (l *NotificationLog) Delete(ctx context.Context, accountID, notificationID string) error {
	return l.mutate(ctx, accountID, func(entries []entities.NotificationEntry) ([]entities.NotificationEntry, error) {
		for i := range entries {
			if entries[i].ID == notificationID {
				return append(entries[:i:i], entries[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("notification %s: %w", notificationID, entities.ErrNotificationNotFound)
	})
}

func (l *NotificationLog) Clear(ctx context.Context, accountID string) error {
	return l.mutate(ctx, accountID, func([]entities.NotificationEntry) ([]entities.NotificationEntry, error) {
		return []entities.NotificationEntry{}, nil
	})
}

// List returns up to limit entries, newest first. A non-positive limit
// returns the whole list.
func (l *NotificationLog) List(ctx context.Context, accountID string, limit int) ([]entities.NotificationEntry, error) {
	return l.list(ctx, accountID, limit, false)
}

func (l *NotificationLog) ListUnread(ctx context.Context, accountID string, limit int) ([]entities.NotificationEntry, error) {
	return l.list(ctx, accountID, limit, true)
}

func (l *NotificationLog) UnreadCount(ctx context.Context, accountID string) (int, error) {
	unread, err := l.list(ctx, accountID, 0, true)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

func (l *NotificationLog) list(
	ctx context.Context, accountID string, limit int, unreadOnly bool,
) ([]entities.NotificationEntry, error) {
	current, err := l.repo.GetNotificationLog(ctx, accountID)
	if err != nil {
		return nil, err
	}

	out := make([]entities.NotificationEntry, 0, len(current.Entries))
	for _, entry := range current.Entries {
		if unreadOnly && entry.IsRead {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
