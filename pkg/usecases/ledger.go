package usecases

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"samplr/pkg/consts"
	"samplr/pkg/entities"
	"samplr/pkg/metrics"
	"samplr/pkg/repo"
	"samplr/utilities"
)

// Emitter records a notification for an account and fans it out.
type Emitter interface {
	Emit(ctx context.Context, profileID string, entry entities.NotificationEntry) (*entities.NotificationEntry, error)
}

type AccrualUsecases struct {
	ledger   repo.LedgerRepoImply
	userRepo repo.UserRepoImply
	tierRepo repo.TierRepoImply
	emitter  Emitter
	locks    *utilities.KeyedMutex
}

type AccrualUsecaseImply interface {
	SubmitCheckIn(context.Context, entities.CheckInRequest) (*entities.CheckInRecord, error)
	SubmitReview(context.Context, entities.ReviewRequest) (*entities.ReviewRecord, error)
	GetStatistics(ctx context.Context, userOrAuthID string) (*entities.Statistics, error)
	ReconcileTotals(ctx context.Context, userID string) (*entities.ReconcileResult, error)
}

func NewAccrualUsecases(
	ledger repo.LedgerRepoImply, userRepo repo.UserRepoImply, tierRepo repo.TierRepoImply, emitter Emitter,
) *AccrualUsecases {
	return &AccrualUsecases{
		ledger:   ledger,
		userRepo: userRepo,
		tierRepo: tierRepo,
		emitter:  emitter,
		locks:    utilities.NewKeyedMutex(),
	}
}

// accrual is one submission on its way through the ledger.
type accrual struct {
	kind    string
	userID  string
	eventID string
	points  int64

	// persist creates the record for the resolved profile.
	persist func(ctx context.Context, profileID string) error

	title   string
	message string
}

// postCommitHook is a side effect run after the totals were written.
type postCommitHook struct {
	name string
	run  func(ctx context.Context) error
}

// SubmitCheckIn records an event check-in and credits its points once.
func (usecase *AccrualUsecases) SubmitCheckIn(
	ctx context.Context, request entities.CheckInRequest,
) (*entities.CheckInRecord, error) {
	switch {
	case utilities.IsBlank(request.UserID), utilities.IsBlank(request.EventID):
		return nil, usecase.invalid(consts.KindCheckIn, "user id and event id are required")
	case utilities.IsBlank(request.CheckInCode):
		return nil, usecase.invalid(consts.KindCheckIn, "check-in code is required")
	case request.PointsEarned < 0:
		return nil, usecase.invalid(consts.KindCheckIn, "points earned cannot be negative")
	case request.PointsEarned > consts.MaxPointsPerAccrual:
		return nil, usecase.invalid(
			consts.KindCheckIn, fmt.Sprintf("points earned cannot exceed %d", consts.MaxPointsPerAccrual),
		)
	}

	var stored *entities.CheckInRecord
	err := usecase.accrue(ctx, accrual{
		kind:    consts.KindCheckIn,
		userID:  request.UserID,
		eventID: request.EventID,
		points:  request.PointsEarned,
		persist: func(ctx context.Context, profileID string) error {
			record, err := usecase.ledger.CreateCheckIn(ctx, entities.CheckInRecord{
				UserID:       profileID,
				EventID:      request.EventID,
				CheckInCode:  request.CheckInCode,
				PointsEarned: request.PointsEarned,
				CreatedAt:    utilities.TimeNow(),
			})
			stored = record
			return err
		},
		title:   "Check-in confirmed",
		message: fmt.Sprintf("You earned %d points for checking in.", request.PointsEarned),
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// SubmitReview records a sampling review and credits its points once.
func (usecase *AccrualUsecases) SubmitReview(
	ctx context.Context, request entities.ReviewRequest,
) (*entities.ReviewRecord, error) {
	switch {
	case utilities.IsBlank(request.UserID), utilities.IsBlank(request.EventID):
		return nil, usecase.invalid(consts.KindReview, "user id and event id are required")
	case request.Rating < consts.MinRating || request.Rating > consts.MaxRating:
		return nil, usecase.invalid(
			consts.KindReview, fmt.Sprintf("rating must be between %d and %d", consts.MinRating, consts.MaxRating),
		)
	case request.PointsEarned < 0:
		return nil, usecase.invalid(consts.KindReview, "points earned cannot be negative")
	case request.PointsEarned > consts.MaxPointsPerAccrual:
		return nil, usecase.invalid(
			consts.KindReview, fmt.Sprintf("points earned cannot exceed %d", consts.MaxPointsPerAccrual),
		)
	}

	var stored *entities.ReviewRecord
	err := usecase.accrue(ctx, accrual{
		kind:    consts.KindReview,
		userID:  request.UserID,
		eventID: request.EventID,
		points:  request.PointsEarned,
		persist: func(ctx context.Context, profileID string) error {
			record, err := usecase.ledger.CreateReview(ctx, entities.ReviewRecord{
				UserID:       profileID,
				EventID:      request.EventID,
				Rating:       request.Rating,
				Text:         request.Text,
				Purchased:    request.Purchased,
				PointsEarned: request.PointsEarned,
				CreatedAt:    utilities.TimeNow(),
			})
			stored = record
			return err
		},
		title:   "Review submitted",
		message: fmt.Sprintf("Thanks for your review! You earned %d points.", request.PointsEarned),
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

func (usecase *AccrualUsecases) invalid(kind, reason string) error {
	metrics.Accruals.WithLabelValues(kind, metrics.OutcomeInvalid).Inc()
	return fmt.Errorf("%s: %w", reason, entities.ErrInvalidInput)
}

// accrue runs the shared path of check-ins and reviews: duplicate check,
// record creation, totals update and the post-commit hooks.
func (usecase *AccrualUsecases) accrue(ctx context.Context, a accrual) error {
	logger := utilities.NewLoggerWithFields("accrue", map[string]interface{}{
		"kind":  a.kind,
		"user":  a.userID,
		"event": a.eventID,
	})

	account, err := usecase.userRepo.GetProfile(ctx, a.userID)
	if err != nil {
		if errors.Is(err, entities.ErrProfileNotFound) {
			metrics.Accruals.WithLabelValues(a.kind, metrics.OutcomeNoProfile).Inc()
			return err
		}
		logger.WithError(err).Error("failed to resolve profile")
		metrics.Accruals.WithLabelValues(a.kind, metrics.OutcomeFailed).Inc()
		return fmt.Errorf("%w: resolving profile: %v", entities.ErrPersistence, err)
	}
	profileID := account.ProfileID

	if !account.Totals().CanCredit(a.points) {
		return usecase.invalid(a.kind, fmt.Sprintf("crediting %d points: %v", a.points, entities.ErrPointsOverflow))
	}

	unlock := usecase.locks.Lock(a.kind + "|" + profileID + "|" + a.eventID)
	defer unlock()

	_, err = usecase.ledger.FindAccrual(ctx, profileID, a.eventID, a.kind)
	switch {
	case err == nil:
		metrics.Accruals.WithLabelValues(a.kind, metrics.OutcomeAlreadyAccrued).Inc()
		return fmt.Errorf("%s for event %s: %w", a.kind, a.eventID, entities.ErrAlreadyAccrued)
	case !errors.Is(err, entities.ErrNotFound):
		logger.WithError(err).Error("failed to look up existing record")
		metrics.Accruals.WithLabelValues(a.kind, metrics.OutcomeFailed).Inc()
		return fmt.Errorf("%w: duplicate check: %v", entities.ErrPersistence, err)
	}

	// Tier bookkeeping never blocks accrual.
	var oldTiers []entities.Tier
	tiersKnown := true
	if oldTiers, err = usecase.tierRepo.ListTiers(ctx); err != nil {
		logger.WithError(err).Warn("failed to fetch tiers, skipping tier change detection")
		tiersKnown = false
	}

	if err = a.persist(ctx, profileID); err != nil {
		if errors.Is(err, entities.ErrDuplicateAccrual) {
			metrics.Accruals.WithLabelValues(a.kind, metrics.OutcomeAlreadyAccrued).Inc()
			return fmt.Errorf("%s for event %s: %w", a.kind, a.eventID, entities.ErrAlreadyAccrued)
		}
		logger.WithError(err).Error("failed to create record")
		metrics.Accruals.WithLabelValues(a.kind, metrics.OutcomeFailed).Inc()
		return fmt.Errorf("%w: creating %s: %v", entities.ErrPersistence, a.kind, err)
	}

	before, after, err := usecase.ledger.AddPoints(ctx, profileID, a.points, a.kind)
	if err != nil {
		logger.WithError(err).WithFields(log.Fields{
			"profile": profileID,
			"points":  a.points,
		}).Error("orphaned record: created but totals not updated, reconcile the account")
		metrics.Accruals.WithLabelValues(a.kind, metrics.OutcomeOrphaned).Inc()
		return fmt.Errorf("%w: updating totals: %v", entities.ErrPersistence, err)
	}

	metrics.Accruals.WithLabelValues(a.kind, metrics.OutcomeAccepted).Inc()
	metrics.PointsCredited.WithLabelValues(a.kind).Add(float64(a.points))

	var oldTier *entities.Tier
	if tiersKnown {
		oldTier = CurrentTier(oldTiers, before.TotalPoints)
	}

	usecase.runPostCommit(ctx, logger,
		postCommitHook{
			name: "accrual-notification",
			run: func(ctx context.Context) error {
				_, err := usecase.emitter.Emit(ctx, profileID, entities.NotificationEntry{
					Type:    a.kind,
					Title:   a.title,
					Message: a.message,
					Data: map[string]interface{}{
						"eventId":      a.eventID,
						"pointsEarned": a.points,
						"totalPoints":  after.TotalPoints,
					},
				})
				return err
			},
		},
		postCommitHook{
			name: "tier-change",
			run: func(ctx context.Context) error {
				return usecase.detectTierChange(ctx, profileID, oldTier, after.TotalPoints)
			},
		},
	)

	return nil
}

// detectTierChange compares oldTier with the tier of newPoints under a freshly
// fetched catalog and emits tier-changed when the order differs.
func (usecase *AccrualUsecases) detectTierChange(
	ctx context.Context, profileID string, oldTier *entities.Tier, newPoints int64,
) error {
	if oldTier == nil {
		return nil
	}

	tiers, err := usecase.tierRepo.ListTiers(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch tiers: %w", err)
	}

	newTier := CurrentTier(tiers, newPoints)
	if newTier == nil || newTier.Order == oldTier.Order {
		return nil
	}

	metrics.TierChanges.Inc()

	_, err = usecase.emitter.Emit(ctx, profileID, entities.NotificationEntry{
		Type:    consts.NotificationTierChanged,
		Title:   "Tier changed",
		Message: fmt.Sprintf("You are now %s.", newTier.Name),
		Data: map[string]interface{}{
			"oldTierOrder": oldTier.Order,
			"oldTierName":  oldTier.Name,
			"newTierOrder": newTier.Order,
			"newTierName":  newTier.Name,
		},
	})
	return err
}

// runPostCommit runs every hook, logging and swallowing its error or panic.
func (usecase *AccrualUsecases) runPostCommit(ctx context.Context, logger *log.Entry, hooks ...postCommitHook) {
	for _, hook := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("post-commit hook %s panicked: %v", hook.name, r)
					metrics.AdvisoryFailures.WithLabelValues(hook.name).Inc()
				}
			}()

			if err := hook.run(ctx); err != nil {
				logger.WithError(err).Errorf("post-commit hook %s failed", hook.name)
				metrics.AdvisoryFailures.WithLabelValues(hook.name).Inc()
			}
		}()
	}
}

// GetStatistics summarises an account. Tier details are omitted when the
// catalog cannot be read.
func (usecase *AccrualUsecases) GetStatistics(ctx context.Context, userOrAuthID string) (*entities.Statistics, error) {
	logger := utilities.NewLoggerWithFields("GetStatistics", map[string]interface{}{
		"user": userOrAuthID,
	})

	if utilities.IsBlank(userOrAuthID) {
		return nil, fmt.Errorf("user id is required: %w", entities.ErrInvalidInput)
	}

	account, err := usecase.userRepo.GetProfile(ctx, userOrAuthID)
	if err != nil {
		return nil, err
	}

	stats := &entities.Statistics{
		TotalPoints:     account.TotalPoints,
		EventCheckIns:   account.TotalEvents,
		SamplingReviews: account.TotalReviews,
	}

	tiers, err := usecase.tierRepo.ListTiers(ctx)
	if err != nil {
		logger.WithError(err).Warn("failed to fetch tiers, returning totals only")
		return stats, nil
	}

	stats.BadgeAchievements = BadgeAchievements(tiers, account.TotalPoints)
	stats.CurrentTier = CurrentTier(tiers, account.TotalPoints)
	if next := NextTier(tiers, account.TotalPoints); next != nil {
		remaining := next.RequiredPoints - account.TotalPoints
		stats.NextTier = next
		stats.PointsToNextTier = &remaining
	}

	return stats, nil
}

// ReconcileTotals recomputes an account's totals from its ledger records and
// raises the stored totals to match. Totals are never lowered.
func (usecase *AccrualUsecases) ReconcileTotals(ctx context.Context, userID string) (*entities.ReconcileResult, error) {
	logger := utilities.NewLoggerWithFields("ReconcileTotals", map[string]interface{}{
		"user": userID,
	})

	if utilities.IsBlank(userID) {
		return nil, fmt.Errorf("user id is required: %w", entities.ErrInvalidInput)
	}

	account, err := usecase.userRepo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var ledgerTotals entities.Totals
	for _, kind := range []string{consts.KindCheckIn, consts.KindReview} {
		records, err := usecase.ledger.ListAccruals(ctx, account.ProfileID, kind)
		if err != nil {
			return nil, fmt.Errorf("%w: listing %s records: %v", entities.ErrPersistence, kind, err)
		}
		for _, record := range records {
			if ledgerTotals, err = ledgerTotals.Apply(record.PointsEarned, kind); err != nil {
				logger.WithError(err).Errorf("ledger of %s cannot be summed", account.ProfileID)
				return nil, err
			}
		}
	}

	before := account.Totals()
	after := before
	if ledgerTotals.TotalPoints > after.TotalPoints {
		after.TotalPoints = ledgerTotals.TotalPoints
	}
	if ledgerTotals.TotalEvents > after.TotalEvents {
		after.TotalEvents = ledgerTotals.TotalEvents
	}
	if ledgerTotals.TotalReviews > after.TotalReviews {
		after.TotalReviews = ledgerTotals.TotalReviews
	}

	result := &entities.ReconcileResult{ProfileID: account.ProfileID, Before: before, After: after}
	if after == before {
		return result, nil
	}

	if err = usecase.ledger.SetTotals(ctx, account.ProfileID, before, after); err != nil {
		logger.WithError(err).Error("failed to repair totals")
		return nil, err
	}

	logger.Infof("totals repaired from %+v to %+v", before, after)
	result.Repaired = true

	return result, nil
}
