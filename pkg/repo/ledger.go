package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"samplr/config"
	"samplr/pkg/consts"
	"samplr/pkg/entities"
	"samplr/utilities"
)

type LedgerRepo struct {
	db   *gocql.Session
	conf *config.SamplrConfModel
}

// LedgerRepoImply persists accrual records and the running totals they back.
type LedgerRepoImply interface {
	FindAccrual(ctx context.Context, userID, eventID, kind string) (*entities.AccrualRecord, error)
	CreateCheckIn(context.Context, entities.CheckInRecord) (*entities.CheckInRecord, error)
	CreateReview(context.Context, entities.ReviewRecord) (*entities.ReviewRecord, error)
	AddPoints(ctx context.Context, profileID string, delta int64, kind string) (entities.Totals, entities.Totals, error)
	ListAccruals(ctx context.Context, userID, kind string) ([]entities.AccrualRecord, error)
	SetTotals(ctx context.Context, profileID string, expected, repaired entities.Totals) error
}

func NewLedgerRepo(db *gocql.Session, conf *config.SamplrConfModel) LedgerRepoImply {
	return &LedgerRepo{db: db, conf: conf}
}

func (repo *LedgerRepo) accrualTable(kind string) (string, error) {
	switch kind {
	case consts.KindCheckIn:
		return table(repo.conf, consts.CheckInTable), nil
	case consts.KindReview:
		return table(repo.conf, consts.ReviewTable), nil
	}
	return "", fmt.Errorf("unknown accrual kind %q: %w", kind, entities.ErrInvalidInput)
}

// FindAccrual returns entities.ErrNotFound when the user has no record of kind for the event.
func (repo *LedgerRepo) FindAccrual(ctx context.Context, userID, eventID, kind string) (*entities.AccrualRecord, error) {
	tbl, err := repo.accrualTable(kind)
	if err != nil {
		return nil, err
	}

	record := &entities.AccrualRecord{UserID: userID, EventID: eventID, Kind: kind}
	query := fmt.Sprintf(`SELECT points_earned, created_time FROM %s WHERE user_id = ? AND event_id = ?`, tbl)
	err = repo.db.Query(query, userID, eventID).WithContext(ctx).
		Scan(&record.PointsEarned, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, fmt.Errorf("%s for %s/%s: %w", kind, userID, eventID, entities.ErrNotFound)
		}
		return nil, err
	}

	return record, nil
}

// CreateCheckIn inserts the record only if no row exists for (user, event).
func (repo *LedgerRepo) CreateCheckIn(ctx context.Context, record entities.CheckInRecord) (*entities.CheckInRecord, error) {
	log := utilities.NewLoggerWithFields("CreateCheckIn", map[string]interface{}{
		"user":  record.UserID,
		"event": record.EventID,
	})

	if record.CreatedAt.IsZero() {
		record.CreatedAt = utilities.TimeNow()
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (user_id, event_id, check_in_code, points_earned, created_time) VALUES (?, ?, ?, ?, ?) IF NOT EXISTS`,
		table(repo.conf, consts.CheckInTable),
	)
	applied, err := repo.db.Query(
		query, record.UserID, record.EventID, record.CheckInCode, record.PointsEarned, record.CreatedAt,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		log.WithError(err).Error("failed to execute query for inserting check-in")
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("check-in %s/%s: %w", record.UserID, record.EventID, entities.ErrDuplicateAccrual)
	}

	log.Debug("Check-in inserted")

	return &record, nil
}

// CreateReview inserts the record only if no row exists for (user, event).
func (repo *LedgerRepo) CreateReview(ctx context.Context, record entities.ReviewRecord) (*entities.ReviewRecord, error) {
	log := utilities.NewLoggerWithFields("CreateReview", map[string]interface{}{
		"user":  record.UserID,
		"event": record.EventID,
	})

	if record.CreatedAt.IsZero() {
		record.CreatedAt = utilities.TimeNow()
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (user_id, event_id, rating, review_text, purchased, points_earned, created_time) VALUES %s IF NOT EXISTS`,
		table(repo.conf, consts.ReviewTable), utilities.DBMultiValuePlaceholders(7),
	)
	applied, err := repo.db.Query(
		query, record.UserID, record.EventID, record.Rating, record.Text, record.Purchased,
		record.PointsEarned, record.CreatedAt,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		log.WithError(err).Error("failed to execute query for inserting review")
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("review %s/%s: %w", record.UserID, record.EventID, entities.ErrDuplicateAccrual)
	}

	log.Debug("Review inserted")

	return &record, nil
}

// storedTotals is the totals row as read, with nil for columns the signup
// flow never wrote.
type storedTotals struct {
	points  *int64
	events  *int
	reviews *int
}

func (s storedTotals) totals() entities.Totals {
	var totals entities.Totals
	if s.points != nil {
		totals.TotalPoints = *s.points
	}
	if s.events != nil {
		totals.TotalEvents = *s.events
	}
	if s.reviews != nil {
		totals.TotalReviews = *s.reviews
	}
	return totals
}

func (s storedTotals) condition() (string, []interface{}) {
	return casCondition(
		casColumn{name: "total_points", value: nullable(s.points)},
		casColumn{name: "total_events", value: nullable(s.events)},
		casColumn{name: "total_reviews", value: nullable(s.reviews)},
	)
}

func (repo *LedgerRepo) readTotals(ctx context.Context, profileID string) (storedTotals, error) {
	var stored storedTotals
	query := fmt.Sprintf(
		`SELECT total_points, total_events, total_reviews FROM %s WHERE profile_id = ?`,
		table(repo.conf, consts.UserAccountTable),
	)
	err := repo.db.Query(query, profileID).WithContext(ctx).
		Scan(&stored.points, &stored.events, &stored.reviews)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return stored, fmt.Errorf("profile %s: %w", profileID, entities.ErrProfileNotFound)
		}
		return stored, err
	}
	return stored, nil
}

// casTotals writes next if the row still holds exactly what was read.
func (repo *LedgerRepo) casTotals(ctx context.Context, profileID string, expected storedTotals, next entities.Totals) (bool, error) {
	condition, conditionArgs := expected.condition()
	query := fmt.Sprintf(
		`UPDATE %s SET total_points = ?, total_events = ?, total_reviews = ? WHERE profile_id = ? %s`,
		table(repo.conf, consts.UserAccountTable), condition,
	)
	args := append(
		[]interface{}{next.TotalPoints, next.TotalEvents, next.TotalReviews, profileID}, conditionArgs...,
	)
	return repo.db.Query(query, args...).WithContext(ctx).MapScanCAS(map[string]interface{}{})
}

// AddPoints credits delta points and bumps the counter of kind with a
// compare-and-set loop. It returns the totals before and after the write.
func (repo *LedgerRepo) AddPoints(
	ctx context.Context, profileID string, delta int64, kind string,
) (entities.Totals, entities.Totals, error) {
	log := utilities.NewLoggerWithFields("AddPoints", map[string]interface{}{
		"profile": profileID,
		"kind":    kind,
	})

	retries := repo.conf.Ledger.CASRetries
	if retries <= 0 {
		retries = 1
	}

	for attempt := 0; attempt < retries; attempt++ {
		stored, err := repo.readTotals(ctx, profileID)
		if err != nil {
			return entities.Totals{}, entities.Totals{}, err
		}
		current := stored.totals()

		next, err := current.Apply(delta, kind)
		if err != nil {
			return current, current, fmt.Errorf("crediting %d points to %s: %w", delta, profileID, err)
		}
		applied, err := repo.casTotals(ctx, profileID, stored, next)
		if err != nil {
			log.WithError(err).Error("failed to execute query for updating totals")
			return entities.Totals{}, entities.Totals{}, err
		}
		if applied {
			return current, next, nil
		}

		log.Debugf("totals changed underneath, retry %d", attempt+1)
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}

	return entities.Totals{}, entities.Totals{}, fmt.Errorf("updating totals of %s: %w", profileID, entities.ErrContention)
}

// ListAccruals returns every record of kind held by the user.
func (repo *LedgerRepo) ListAccruals(ctx context.Context, userID, kind string) ([]entities.AccrualRecord, error) {
	log := utilities.NewLogger("ListAccruals")

	tbl, err := repo.accrualTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT event_id, points_earned, created_time FROM %s WHERE user_id = ?`, tbl)
	iter := repo.db.Query(query, userID).WithContext(ctx).Iter()

	var (
		eventID      string
		pointsEarned int64
		createdTime  time.Time

		records []entities.AccrualRecord
	)

	for iter.Scan(&eventID, &pointsEarned, &createdTime) {
		records = append(records, entities.AccrualRecord{
			UserID:       userID,
			EventID:      eventID,
			Kind:         kind,
			PointsEarned: pointsEarned,
			CreatedAt:    createdTime,
		})
	}

	if err = iter.Close(); err != nil {
		log.WithError(err).Error("failed to retrieve accruals")
		return nil, err
	}

	return records, nil
}

// SetTotals overwrites totals if they still equal expected.
func (repo *LedgerRepo) SetTotals(ctx context.Context, profileID string, expected, repaired entities.Totals) error {
	stored, err := repo.readTotals(ctx, profileID)
	if err != nil {
		return err
	}
	if stored.totals() != expected {
		return fmt.Errorf("repairing totals of %s: %w", profileID, entities.ErrContention)
	}

	applied, err := repo.casTotals(ctx, profileID, stored, repaired)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("repairing totals of %s: %w", profileID, entities.ErrContention)
	}
	return nil
}
