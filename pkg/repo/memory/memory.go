// Package memory is the single-process store used in local mode and by tests.
// It keeps the remote store's contract: conditional creates, compare-and-set
// on totals and on the notification list, notifications held as blobs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/patrickmn/go-cache"

	"samplr/pkg/consts"
	"samplr/pkg/entities"
	"samplr/pkg/repo"
	"samplr/utilities"
)

var (
	_ repo.Imply                 = (*Store)(nil)
	_ repo.LedgerRepoImply       = (*Store)(nil)
	_ repo.UserRepoImply         = (*Store)(nil)
	_ repo.TierRepoImply         = (*Store)(nil)
	_ repo.NotificationRepoImply = (*Store)(nil)
)

type accountRow struct {
	account              entities.UserAccount
	notifications        []string
	notificationsVersion int64
}

type Store struct {
	records *cache.Cache

	mu       sync.Mutex
	accounts map[string]*accountRow
	authIdx  map[string]string
	tiers    map[int]entities.Tier
	devices  map[string][]string
}

func New() *Store {
	return &Store{
		records:  cache.New(cache.NoExpiration, 0),
		accounts: make(map[string]*accountRow),
		authIdx:  make(map[string]string),
		tiers:    make(map[int]entities.Tier),
		devices:  make(map[string][]string),
	}
}

func recordKey(kind, userID, eventID string) string {
	return kind + "|" + userID + "|" + eventID
}

func (s *Store) DBHealthCheck(_ context.Context) error {
	return nil
}

func (s *Store) FindAccrual(_ context.Context, userID, eventID, kind string) (*entities.AccrualRecord, error) {
	item, ok := s.records.Get(recordKey(kind, userID, eventID))
	if !ok {
		return nil, fmt.Errorf("%s for %s/%s: %w", kind, userID, eventID, entities.ErrNotFound)
	}
	record := item.(entities.AccrualRecord)
	return &record, nil
}

func (s *Store) CreateCheckIn(_ context.Context, record entities.CheckInRecord) (*entities.CheckInRecord, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = utilities.TimeNow()
	}
	// go-cache Add fails when the key exists, which makes it a conditional create
	err := s.records.Add(recordKey(consts.KindCheckIn, record.UserID, record.EventID), entities.AccrualRecord{
		UserID:       record.UserID,
		EventID:      record.EventID,
		Kind:         consts.KindCheckIn,
		PointsEarned: record.PointsEarned,
		CreatedAt:    record.CreatedAt,
	}, cache.NoExpiration)
	if err != nil {
		return nil, fmt.Errorf("check-in %s/%s: %w", record.UserID, record.EventID, entities.ErrDuplicateAccrual)
	}
	return &record, nil
}

func (s *Store) CreateReview(_ context.Context, record entities.ReviewRecord) (*entities.ReviewRecord, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = utilities.TimeNow()
	}
	err := s.records.Add(recordKey(consts.KindReview, record.UserID, record.EventID), entities.AccrualRecord{
		UserID:       record.UserID,
		EventID:      record.EventID,
		Kind:         consts.KindReview,
		PointsEarned: record.PointsEarned,
		CreatedAt:    record.CreatedAt,
	}, cache.NoExpiration)
	if err != nil {
		return nil, fmt.Errorf("review %s/%s: %w", record.UserID, record.EventID, entities.ErrDuplicateAccrual)
	}
	return &record, nil
}

func (s *Store) AddPoints(_ context.Context, profileID string, delta int64, kind string) (entities.Totals, entities.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.accounts[profileID]
	if !ok {
		return entities.Totals{}, entities.Totals{}, fmt.Errorf("profile %s: %w", profileID, entities.ErrProfileNotFound)
	}

	before := row.account.Totals()
	after, err := before.Apply(delta, kind)
	if err != nil {
		return before, before, fmt.Errorf("crediting %d points to %s: %w", delta, profileID, err)
	}
	row.account.TotalPoints = after.TotalPoints
	row.account.TotalEvents = after.TotalEvents
	row.account.TotalReviews = after.TotalReviews

	return before, after, nil
}

func (s *Store) ListAccruals(_ context.Context, userID, kind string) ([]entities.AccrualRecord, error) {
	var records []entities.AccrualRecord
	for _, item := range s.records.Items() {
		record := item.Object.(entities.AccrualRecord)
		if record.UserID == userID && record.Kind == kind {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].EventID < records[j].EventID })
	return records, nil
}

func (s *Store) SetTotals(_ context.Context, profileID string, expected, repaired entities.Totals) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.accounts[profileID]
	if !ok {
		return fmt.Errorf("profile %s: %w", profileID, entities.ErrProfileNotFound)
	}
	if row.account.Totals() != expected {
		return fmt.Errorf("repairing totals of %s: %w", profileID, entities.ErrContention)
	}

	row.account.TotalPoints = repaired.TotalPoints
	row.account.TotalEvents = repaired.TotalEvents
	row.account.TotalReviews = repaired.TotalReviews
	return nil
}

func (s *Store) GetProfile(_ context.Context, userOrAuthID string) (*entities.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.accounts[userOrAuthID]
	if !ok {
		profileID, indexed := s.authIdx[userOrAuthID]
		if indexed {
			row, ok = s.accounts[profileID]
		}
	}
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userOrAuthID, entities.ErrProfileNotFound)
	}

	account := row.account
	account.NotificationPreferences = copyPrefs(row.account.NotificationPreferences)
	account.Notifications, _ = entities.DecodeNotificationBlobs(row.notifications)
	return &account, nil
}

func (s *Store) UpsertAccount(_ context.Context, account entities.UserAccount) error {
	blobs, err := entities.EncodeNotificationBlobs(account.Notifications)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account.NotificationPreferences = copyPrefs(account.NotificationPreferences)
	account.Notifications = nil
	s.accounts[account.ProfileID] = &accountRow{account: account, notifications: blobs}
	if account.AuthID != "" {
		s.authIdx[account.AuthID] = account.ProfileID
	}
	return nil
}

func (s *Store) UpdatePreferences(_ context.Context, profileID string, prefs map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.accounts[profileID]
	if !ok {
		return fmt.Errorf("profile %s: %w", profileID, entities.ErrProfileNotFound)
	}
	if row.account.NotificationPreferences == nil {
		row.account.NotificationPreferences = make(map[string]bool, len(prefs))
	}
	for key, val := range prefs {
		row.account.NotificationPreferences[key] = val
	}
	return nil
}

func (s *Store) StoreFCMToken(_ context.Context, fcm entities.FCM) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if utilities.ContainsString(s.devices[fcm.ProfileID], fcm.DeviceID) {
		return nil
	}
	s.devices[fcm.ProfileID] = append(s.devices[fcm.ProfileID], fcm.DeviceID)
	return nil
}

func (s *Store) GetFCMTokens(_ context.Context, profileID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.devices[profileID]...), nil
}

func (s *Store) ListTiers(_ context.Context) ([]entities.Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tiers := make([]entities.Tier, 0, len(s.tiers))
	for _, tier := range s.tiers {
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Order < tiers[j].Order })
	return tiers, nil
}

func (s *Store) UpsertTier(_ context.Context, tier entities.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tiers[tier.Order] = tier
	return nil
}

func (s *Store) GetNotificationLog(_ context.Context, profileID string) (*entities.NotificationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.accounts[profileID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", profileID, entities.ErrProfileNotFound)
	}

	entries, skipped := entities.DecodeNotificationBlobs(row.notifications)
	if skipped > 0 {
		utilities.NewLogger("memory.GetNotificationLog").Warnf("skipped %d undecodable notifications", skipped)
	}
	return &entities.NotificationLog{Entries: entries, Version: row.notificationsVersion}, nil
}

func (s *Store) SaveNotificationLog(
	_ context.Context, profileID string, entries []entities.NotificationEntry, expectedVersion int64,
) error {
	blobs, err := entities.EncodeNotificationBlobs(entries)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.accounts[profileID]
	if !ok {
		return fmt.Errorf("profile %s: %w", profileID, entities.ErrProfileNotFound)
	}
	if row.notificationsVersion != expectedVersion {
		return fmt.Errorf("notifications of %s: %w", profileID, entities.ErrContention)
	}

	row.notifications = blobs
	row.notificationsVersion++
	return nil
}

// RawNotifications exposes the stored blobs so callers can inspect or corrupt them.
func (s *Store) RawNotifications(profileID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.accounts[profileID]
	if !ok {
		return nil
	}
	return append([]string(nil), row.notifications...)
}

// SetRawNotifications overwrites the stored blobs and bumps the version.
func (s *Store) SetRawNotifications(profileID string, blobs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.accounts[profileID]; ok {
		row.notifications = append([]string(nil), blobs...)
		row.notificationsVersion++
	}
}

func copyPrefs(prefs map[string]bool) map[string]bool {
	if prefs == nil {
		return nil
	}
	out := make(map[string]bool, len(prefs))
	for key, val := range prefs {
		out[key] = val
	}
	return out
}
