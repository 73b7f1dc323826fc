package entities

import (
	"math"

	"samplr/pkg/consts"
)

// UserAccount is the profile row the ledger credits. Notifications are kept
// newest first.
type UserAccount struct {
	AuthID                  string              `json:"auth_id"`
	ProfileID               string              `json:"profile_id"`
	TotalPoints             int64               `json:"total_points"`
	TotalEvents             int                 `json:"total_events"`
	TotalReviews            int                 `json:"total_reviews"`
	Notifications           []NotificationEntry `json:"notifications,omitempty"`
	NotificationPreferences map[string]bool     `json:"notification_preferences,omitempty"`
}

// PushEnabled reports the push toggle, which defaults to on.
func (u *UserAccount) PushEnabled() bool {
	enabled, ok := u.NotificationPreferences[consts.PreferencePush]
	if !ok {
		return true
	}
	return enabled
}

// Totals is the snapshot compared and swapped by the ledger store.
type Totals struct {
	TotalPoints  int64 `json:"total_points"`
	TotalEvents  int   `json:"total_events"`
	TotalReviews int   `json:"total_reviews"`
}

func (u *UserAccount) Totals() Totals {
	return Totals{
		TotalPoints:  u.TotalPoints,
		TotalEvents:  u.TotalEvents,
		TotalReviews: u.TotalReviews,
	}
}

type Statistics struct {
	TotalPoints       int64  `json:"total_points"`
	EventCheckIns     int    `json:"event_check_ins"`
	SamplingReviews   int    `json:"sampling_reviews"`
	BadgeAchievements int    `json:"badge_achievements"`
	CurrentTier       *Tier  `json:"current_tier,omitempty"`
	NextTier          *Tier  `json:"next_tier,omitempty"`
	PointsToNextTier  *int64 `json:"points_to_next_tier,omitempty"`
}

// ReconcileResult describes an operator repair of an account's totals.
type ReconcileResult struct {
	ProfileID string `json:"profile_id"`
	Before    Totals `json:"before"`
	After     Totals `json:"after"`
	Repaired  bool   `json:"repaired"`
}

type FCM struct {
	ProfileID string `json:"profile_id"`
	DeviceID  string `json:"device_id" binding:"required"`
}

// CanCredit reports whether delta points fit on top of the current total.
func (t Totals) CanCredit(delta int64) bool {
	return delta >= 0 && delta <= math.MaxInt64-t.TotalPoints
}

// Apply returns the totals after crediting delta points for one accrual of
// kind. It never wraps: a negative delta or one past the int64 range is
// refused with ErrPointsOverflow.
func (t Totals) Apply(delta int64, kind string) (Totals, error) {
	if !t.CanCredit(delta) {
		return t, ErrPointsOverflow
	}
	next := t
	next.TotalPoints += delta
	switch kind {
	case consts.KindCheckIn:
		next.TotalEvents++
	case consts.KindReview:
		next.TotalReviews++
	}
	return next, nil
}
