package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

type NotificationEntry struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	IsRead    bool                   `json:"isRead"`
	CreatedAt time.Time              `json:"createdAt"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func (n *NotificationEntry) Marshal() (string, error) {
	byteData, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("failed to marshal notification entry: %w", err)
	}

	return string(byteData), nil
}

func (n *NotificationEntry) Unmarshal(data string) error {
	err := json.Unmarshal([]byte(data), n)
	if err != nil {
		return fmt.Errorf("unmarshal failed for notification entry: %w", err)
	}

	return nil
}

// NotificationRequest is what producers outside the ledger submit.
type NotificationRequest struct {
	Type    string                 `json:"type" binding:"required"`
	Title   string                 `json:"title" binding:"required"`
	Message string                 `json:"message" binding:"required"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// PushMessage is what the push channel delivers to every device of an account.
type PushMessage struct {
	AccountID string
	Title     string
	Message   string
	Type      string
	Data      map[string]string
}

// NotificationLog is a stored list plus the token its next write must match.
type NotificationLog struct {
	Entries []NotificationEntry
	Version int64
}

// DecodeNotificationBlobs turns stored blobs into entries, keeping order.
// Blobs that fail to decode are skipped and counted.
func DecodeNotificationBlobs(blobs []string) ([]NotificationEntry, int) {
	entries := make([]NotificationEntry, 0, len(blobs))
	skipped := 0
	for _, blob := range blobs {
		var entry NotificationEntry
		if err := entry.Unmarshal(blob); err != nil || entry.ID == "" {
			skipped++
			continue
		}
		entries = append(entries, entry)
	}
	return entries, skipped
}

// EncodeNotificationBlobs serialises every entry independently.
func EncodeNotificationBlobs(entries []NotificationEntry) ([]string, error) {
	blobs := make([]string, 0, len(entries))
	for i := range entries {
		blob, err := entries[i].Marshal()
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, blob)
	}
	return blobs, nil
}
