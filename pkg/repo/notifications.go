package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"

	"samplr/config"
	"samplr/pkg/consts"
	"samplr/pkg/entities"
	"samplr/utilities"
)

type NotificationRepo struct {
	db   *gocql.Session
	conf *config.SamplrConfModel
}

// NotificationRepoImply reads and writes an account's notification list as a
// whole. Writes are conditional on the version read alongside the list.
type NotificationRepoImply interface {
	GetNotificationLog(ctx context.Context, profileID string) (*entities.NotificationLog, error)
	SaveNotificationLog(ctx context.Context, profileID string, entries []entities.NotificationEntry, expectedVersion int64) error
}

func NewNotificationRepo(db *gocql.Session, conf *config.SamplrConfModel) NotificationRepoImply {
	return &NotificationRepo{db: db, conf: conf}
}

// GetNotificationLog loads the stored blobs and decodes them, skipping
// entries that no longer decode.
func (repo *NotificationRepo) GetNotificationLog(ctx context.Context, profileID string) (*entities.NotificationLog, error) {
	log := utilities.NewLoggerWithFields("GetNotificationLog", map[string]interface{}{
		"profile": profileID,
	})

	query := fmt.Sprintf(
		`SELECT notifications, notifications_version FROM %s WHERE profile_id = ?`,
		table(repo.conf, consts.UserAccountTable),
	)

	// a row from signup may lack the version, which is set to 0 once
	for attempt := 0; attempt < 2; attempt++ {
		var (
			blobs   []string
			version *int64
		)
		if err := repo.db.Query(query, profileID).WithContext(ctx).Scan(&blobs, &version); err != nil {
			if errors.Is(err, gocql.ErrNotFound) {
				return nil, fmt.Errorf("profile %s: %w", profileID, entities.ErrProfileNotFound)
			}
			log.WithError(err).Error("failed to read notifications")
			return nil, err
		}

		if version == nil {
			if err := repo.initNotificationsVersion(ctx, profileID); err != nil {
				log.WithError(err).Error("failed to initialise notifications version")
				return nil, err
			}
			continue
		}

		entries, skipped := entities.DecodeNotificationBlobs(blobs)
		if skipped > 0 {
			log.Warnf("skipped %d undecodable notifications", skipped)
		}

		return &entities.NotificationLog{Entries: entries, Version: *version}, nil
	}

	return nil, fmt.Errorf("notifications version of %s: %w", profileID, entities.ErrContention)
}

// initNotificationsVersion sets a missing version to 0. Losing the race to
// another writer is fine: the column is set either way.
func (repo *NotificationRepo) initNotificationsVersion(ctx context.Context, profileID string) error {
	condition, args := casCondition(casColumn{name: "notifications_version"})
	query := fmt.Sprintf(
		`UPDATE %s SET notifications_version = 0 WHERE profile_id = ? %s`,
		table(repo.conf, consts.UserAccountTable), condition,
	)
	_, err := repo.db.Query(query, append([]interface{}{profileID}, args...)...).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
	return err
}

// SaveNotificationLog replaces the list if nobody wrote since expectedVersion
// was read; otherwise it returns entities.ErrContention.
func (repo *NotificationRepo) SaveNotificationLog(
	ctx context.Context, profileID string, entries []entities.NotificationEntry, expectedVersion int64,
) error {
	log := utilities.NewLoggerWithFields("SaveNotificationLog", map[string]interface{}{
		"profile": profileID,
		"version": expectedVersion,
	})

	blobs, err := entities.EncodeNotificationBlobs(entries)
	if err != nil {
		return err
	}

	condition, conditionArgs := casCondition(casColumn{name: "notifications_version", value: expectedVersion})
	query := fmt.Sprintf(
		`UPDATE %s SET notifications = ?, notifications_version = ? WHERE profile_id = ? %s`,
		table(repo.conf, consts.UserAccountTable), condition,
	)
	args := append([]interface{}{blobs, expectedVersion + 1, profileID}, conditionArgs...)
	applied, err := repo.db.Query(query, args...).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		log.WithError(err).Error("failed to execute query for saving notifications")
		return err
	}
	if !applied {
		return fmt.Errorf("notifications of %s: %w", profileID, entities.ErrContention)
	}

	log.Debugf("Saved %d notifications", len(entries))

	return nil
}
