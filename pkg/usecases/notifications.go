package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"samplr/pkg/entities"
	"samplr/pkg/repo"
	"samplr/pkg/repo/driver/medium"
	"samplr/utilities"
)

// LivePublisher pushes a payload to the open in-app connections of an account.
type LivePublisher interface {
	PushMessage(identifier string, data []byte, broadcast bool) error
}

type NotificationUsecases struct {
	log        *NotificationLog
	userRepo   repo.UserRepoImply
	live       LivePublisher
	dispatcher *Dispatcher
}

// NotificationUsecaseImply serves the notification routes. Every method but
// ResolveProfileID takes a resolved profile id.
type NotificationUsecaseImply interface {
	Notify(ctx context.Context, profileID string, request entities.NotificationRequest) (*entities.NotificationEntry, error)
	GetNotifications(ctx context.Context, profileID string, limit int, unreadOnly bool) ([]entities.NotificationEntry, error)
	UnreadCount(ctx context.Context, profileID string) (int, error)
	MarkRead(ctx context.Context, profileID, notificationID string) error
	MarkAllRead(ctx context.Context, profileID string) (int, error)
	DeleteNotification(ctx context.Context, profileID, notificationID string) error
	ClearNotifications(ctx context.Context, profileID string) error
	RegisterDevice(ctx context.Context, fcm entities.FCM) error
	UpdatePreferences(ctx context.Context, profileID string, prefs map[string]bool) error
	ResolveProfileID(ctx context.Context, userID string) (string, error)
}

// NewNotificationUsecases creates a new instance of the NotificationUsecases struct
func NewNotificationUsecases(
	log *NotificationLog, userRepo repo.UserRepoImply, live LivePublisher, dispatcher *Dispatcher,
) *NotificationUsecases {
	return &NotificationUsecases{
		log:        log,
		userRepo:   userRepo,
		live:       live,
		dispatcher: dispatcher,
	}
}

// Emit appends entry to the account's log, publishes it to live connections
// and hands it to push dispatch in the background. Only the append can fail.
func (usecase *NotificationUsecases) Emit(
	ctx context.Context, profileID string, entry entities.NotificationEntry,
) (*entities.NotificationEntry, error) {
	log := utilities.NewLoggerWithFields("Emit", map[string]interface{}{
		"profile": profileID,
		"type":    entry.Type,
	})

	stored, err := usecase.log.Append(ctx, profileID, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to append notification: %w", err)
	}

	if usecase.live != nil {
		data, err := json.Marshal(stored)
		if err != nil {
			log.WithError(err).Errorf("failed to marshal notification %s", stored.ID)
		} else if err = usecase.live.PushMessage(profileID, data, true); err != nil {
			connErr := &medium.ErrWSConnAbsent{}
			if errors.As(err, &connErr) {
				log.Debug("no live connection")
			} else {
				log.WithError(err).Error("failed to push websocket notification")
			}
		}
	}

	if usecase.dispatcher != nil {
		usecase.dispatcher.DispatchAsync(profileID, *stored)
	}

	return stored, nil
}

// ResolveProfileID maps a profile or auth id to the profile id.
func (usecase *NotificationUsecases) ResolveProfileID(ctx context.Context, userID string) (string, error) {
	if utilities.IsBlank(userID) {
		return "", fmt.Errorf("user id is required: %w", entities.ErrInvalidInput)
	}
	account, err := usecase.userRepo.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	return account.ProfileID, nil
}

// Notify is the entry point for producers outside the ledger.
func (usecase *NotificationUsecases) Notify(
	ctx context.Context, profileID string, request entities.NotificationRequest,
) (*entities.NotificationEntry, error) {
	return usecase.Emit(ctx, profileID, entities.NotificationEntry{
		Type:    request.Type,
		Title:   request.Title,
		Message: request.Message,
		Data:    request.Data,
	})
}

func (usecase *NotificationUsecases) GetNotifications(
	ctx context.Context, profileID string, limit int, unreadOnly bool,
) ([]entities.NotificationEntry, error) {
	if unreadOnly {
		return usecase.log.ListUnread(ctx, profileID, limit)
	}
	return usecase.log.List(ctx, profileID, limit)
}

func (usecase *NotificationUsecases) UnreadCount(ctx context.Context, profileID string) (int, error) {
	return usecase.log.UnreadCount(ctx, profileID)
}

func (usecase *NotificationUsecases) MarkRead(ctx context.Context, profileID, notificationID string) error {
	return usecase.log.MarkRead(ctx, profileID, notificationID)
}

func (usecase *NotificationUsecases) MarkAllRead(ctx context.Context, profileID string) (int, error) {
	return usecase.log.MarkAllRead(ctx, profileID)
}

func (usecase *NotificationUsecases) DeleteNotification(ctx context.Context, profileID, notificationID string) error {
	return usecase.log.Delete(ctx, profileID, notificationID)
}

func (usecase *NotificationUsecases) ClearNotifications(ctx context.Context, profileID string) error {
	return usecase.log.Clear(ctx, profileID)
}

// RegisterDevice stores an FCM token for the account.
func (usecase *NotificationUsecases) RegisterDevice(ctx context.Context, fcm entities.FCM) error {
	if utilities.IsBlank(fcm.DeviceID) {
		return fmt.Errorf("device id is required: %w", entities.ErrInvalidInput)
	}
	return usecase.userRepo.StoreFCMToken(ctx, fcm)
}

func (usecase *NotificationUsecases) UpdatePreferences(ctx context.Context, profileID string, prefs map[string]bool) error {
	if len(prefs) == 0 {
		return fmt.Errorf("no preferences given: %w", entities.ErrInvalidInput)
	}
	return usecase.userRepo.UpdatePreferences(ctx, profileID, prefs)
}
