package medium

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"samplr/config"
	"samplr/pkg/entities"
	"samplr/utilities"
)

// TokenSource returns the push device tokens registered for an account.
type TokenSource interface {
	GetFCMTokens(ctx context.Context, profileID string) ([]string, error)
}

type FirebaseModel struct {
	fcmClient *messaging.Client
	tokens    TokenSource
}

func InitFirebase(ctx context.Context, conf *config.SamplrConfModel, tokens TokenSource) (*FirebaseModel, error) {
	// Use the path to your service account credential json file
	opt := option.WithCredentialsFile(conf.Firebase.Path)
	// Create a new firebase app
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to created new app with config path %s: %w", conf.Firebase.Path, err)
	}
	// Get the FCM object
	fcmClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to created new messaging client: %w", err)
	}

	return &FirebaseModel{fcmClient: fcmClient, tokens: tokens}, nil
}

// Send pushes msg to every registered device of the account. It fails only
// when no device accepted the message.
func (fb *FirebaseModel) Send(ctx context.Context, msg entities.PushMessage) error {
	log := utilities.NewLoggerWithFields(
		"firebase.Send", map[string]interface{}{
			"account": msg.AccountID,
			"type":    msg.Type,
		},
	)

	deviceIDs, err := fb.tokens.GetFCMTokens(ctx, msg.AccountID)
	if err != nil {
		return fmt.Errorf("failed to get fcm tokens: %w", err)
	}
	if len(deviceIDs) == 0 {
		return fmt.Errorf("account %s: %w", msg.AccountID, entities.ErrNoPushDevice)
	}

	resp, err := fb.fcmClient.SendEach(ctx, buildMessages(msg, deviceIDs))
	if err != nil {
		return err
	}

	if resp.FailureCount > 0 {
		for _, errResp := range resp.Responses {
			if errResp != nil && errResp.Error != nil {
				log.WithError(errResp.Error).Errorf("failed to push firebase notification to %s", msg.AccountID)
			}
		}
	}
	if resp.SuccessCount == 0 {
		return fmt.Errorf("firebase rejected notification for all %d devices", len(deviceIDs))
	}

	log.Debugf("firebase notification pushed to %s for %d device IDs", msg.AccountID, resp.SuccessCount)

	return nil
}

func buildMessages(msg entities.PushMessage, deviceIDs []string) []*messaging.Message {
	data := make(map[string]string, len(msg.Data)+2)
	for key, val := range msg.Data {
		data[key] = val
	}
	data["click_action"] = "FLUTTER_NOTIFICATION_CLICK"
	data["type"] = msg.Type

	messages := make([]*messaging.Message, 0, len(deviceIDs))
	for _, deviceID := range deviceIDs {
		messages = append(messages, &messaging.Message{
			Token: deviceID,
			Notification: &messaging.Notification{
				Title: msg.Title,
				Body:  msg.Message,
			},
			Data: data,
			APNS: &messaging.APNSConfig{Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}}},
		})
	}
	return messages
}

// LogSender stands in for Firebase in local mode and only logs the push.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg entities.PushMessage) error {
	utilities.NewLoggerWithFields("LogSender.Send", map[string]interface{}{
		"account": msg.AccountID,
		"type":    msg.Type,
	}).Infof("push %q: %s", msg.Title, msg.Message)
	return nil
}
