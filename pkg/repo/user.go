package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/sirupsen/logrus"

	"samplr/config"
	"samplr/pkg/consts"
	"samplr/pkg/entities"
	"samplr/utilities"
)

type UserRepo struct {
	db   *gocql.Session
	conf *config.SamplrConfModel
}

// UserRepoImply resolves accounts by profile or auth key and holds push device tokens.
type UserRepoImply interface {
	GetProfile(ctx context.Context, userOrAuthID string) (*entities.UserAccount, error)
	UpsertAccount(ctx context.Context, account entities.UserAccount) error
	UpdatePreferences(ctx context.Context, profileID string, prefs map[string]bool) error
	StoreFCMToken(ctx context.Context, fcm entities.FCM) error
	GetFCMTokens(ctx context.Context, profileID string) ([]string, error)
}

// NewUserRepo
func NewUserRepo(db *gocql.Session, conf *config.SamplrConfModel) UserRepoImply {
	return &UserRepo{db: db, conf: conf}
}

// GetProfile looks the key up as a profile id first and as an auth id second.
func (user *UserRepo) GetProfile(ctx context.Context, userOrAuthID string) (*entities.UserAccount, error) {
	log := utilities.NewLogger("GetProfile").WithFields(logrus.Fields{"user": userOrAuthID})

	account, err := user.getByProfileID(ctx, userOrAuthID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, entities.ErrProfileNotFound) {
		return nil, err
	}

	var profileID string
	query := fmt.Sprintf(`SELECT profile_id FROM %s WHERE auth_id = ?`, table(user.conf, consts.UserAuthIndexTable))
	if err = user.db.Query(query, userOrAuthID).WithContext(ctx).Scan(&profileID); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", userOrAuthID, entities.ErrProfileNotFound)
		}
		log.WithError(err).Error("failed to resolve auth id")
		return nil, err
	}

	return user.getByProfileID(ctx, profileID)
}

func (user *UserRepo) getByProfileID(ctx context.Context, profileID string) (*entities.UserAccount, error) {
	var (
		authID        string
		totalPoints   int64
		totalEvents   int
		totalReviews  int
		notifications []string
		prefs         map[string]bool
	)

	query := fmt.Sprintf(
		`SELECT auth_id, total_points, total_events, total_reviews, notifications, notification_preferences FROM %s WHERE profile_id = ?`,
		table(user.conf, consts.UserAccountTable),
	)
	if err := user.db.Query(query, profileID).WithContext(ctx).Scan(
		&authID, &totalPoints, &totalEvents, &totalReviews, &notifications, &prefs,
	); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, fmt.Errorf("profile %s: %w", profileID, entities.ErrProfileNotFound)
		}
		return nil, fmt.Errorf("failed to query db: %w", err)
	}

	entries, skipped := entities.DecodeNotificationBlobs(notifications)
	if skipped > 0 {
		utilities.NewLogger("getByProfileID").Warnf("skipped %d undecodable notifications of %s", skipped, profileID)
	}

	return &entities.UserAccount{
		AuthID:                  authID,
		ProfileID:               profileID,
		TotalPoints:             totalPoints,
		TotalEvents:             totalEvents,
		TotalReviews:            totalReviews,
		Notifications:           entries,
		NotificationPreferences: prefs,
	}, nil
}

// UpsertAccount seeds an account row with zeroed totals and an empty
// notification list so later conditional updates have values to compare.
func (user *UserRepo) UpsertAccount(ctx context.Context, account entities.UserAccount) error {
	log := utilities.NewLogger("UpsertAccount").WithFields(logrus.Fields{"profile": account.ProfileID})

	blobs, err := entities.EncodeNotificationBlobs(account.Notifications)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (profile_id, auth_id, total_points, total_events, total_reviews, notifications, notifications_version, notification_preferences) VALUES %s`,
		table(user.conf, consts.UserAccountTable), utilities.DBMultiValuePlaceholders(8),
	)
	if err = user.db.Query(
		query, account.ProfileID, account.AuthID, account.TotalPoints, account.TotalEvents, account.TotalReviews,
		blobs, int64(0), account.NotificationPreferences,
	).WithContext(ctx).Exec(); err != nil {
		log.WithError(err).Error("failed to insert account")
		return err
	}

	if account.AuthID == "" {
		return nil
	}

	query = fmt.Sprintf(`INSERT INTO %s (auth_id, profile_id) VALUES (?, ?)`, table(user.conf, consts.UserAuthIndexTable))
	if err = user.db.Query(query, account.AuthID, account.ProfileID).WithContext(ctx).Exec(); err != nil {
		log.WithError(err).Error("failed to index auth id")
		return err
	}

	return nil
}

func (user *UserRepo) UpdatePreferences(ctx context.Context, profileID string, prefs map[string]bool) error {
	log := utilities.NewLogger("UpdatePreferences").WithFields(logrus.Fields{"profile": profileID})

	query := fmt.Sprintf(
		`UPDATE %s SET notification_preferences = notification_preferences + ? WHERE profile_id = ? IF EXISTS`,
		table(user.conf, consts.UserAccountTable),
	)
	applied, err := user.db.Query(query, prefs, profileID).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		log.WithError(err).Error("failed to update preferences")
		return err
	}
	if !applied {
		return fmt.Errorf("profile %s: %w", profileID, entities.ErrProfileNotFound)
	}

	return nil
}

func (user *UserRepo) StoreFCMToken(ctx context.Context, fcm entities.FCM) error {
	log := utilities.NewLogger("StoreFCMToken").WithFields(logrus.Fields{"profile": fcm.ProfileID})

	query := fmt.Sprintf(
		"INSERT INTO %s (profile_id, device_id, updated) VALUES (?, ?, ?)",
		table(user.conf, consts.FcmTable),
	)

	if err := user.db.Query(query, fcm.ProfileID, fcm.DeviceID, utilities.TimeNow()).WithContext(ctx).Exec(); err != nil {
		log.WithError(err).Error("failed to insert fcm device id")
		return fmt.Errorf("failed to insert fcm device id: %w", err)
	}

	return nil
}

func (user *UserRepo) GetFCMTokens(ctx context.Context, profileID string) ([]string, error) {
	log := utilities.NewLogger("GetFCMTokens").WithFields(logrus.Fields{"profile": profileID})

	query := fmt.Sprintf("SELECT device_id FROM %s WHERE profile_id = ?", table(user.conf, consts.FcmTable))
	iter := user.db.Query(query, profileID).WithContext(ctx).Iter()

	var (
		deviceID string
		tokens   []string
	)
	for iter.Scan(&deviceID) {
		tokens = append(tokens, deviceID)
	}

	if err := iter.Close(); err != nil {
		log.WithError(err).Error("failed to fetch fcm device ids")
		return nil, err
	}

	return tokens, nil
}
