package consts

const (
	AppName = "samplr"
)

const (
	ModeLocal = "local"
)

const (
	UserID         = "USER_ID"
	NotificationID = "NOTIFICATION_ID"
)

// Accrual kinds. A user holds one ledger per kind, so a check-in and a
// review for the same event never collide.
const (
	KindCheckIn = "check-in"
	KindReview  = "review"
)

// Notification types.
const (
	NotificationCheckIn             = "check-in"
	NotificationReview              = "review"
	NotificationTierChanged         = "tier-changed"
	NotificationBadgeEarned         = "badge-earned"
	NotificationEventAdded          = "event-added"
	NotificationEventReminder       = "event-reminder"
	NotificationFavoriteBrandUpdate = "favorite-brand-update"
)

var NotificationTypes = map[string]struct{}{
	NotificationCheckIn:             {},
	NotificationReview:              {},
	NotificationTierChanged:         {},
	NotificationBadgeEarned:         {},
	NotificationEventAdded:          {},
	NotificationEventReminder:       {},
	NotificationFavoriteBrandUpdate: {},
}

const (
	// NotificationLogCapacity bounds the per-account notification list.
	NotificationLogCapacity = 50

	// PreferencePush gates mobile push delivery. Absent means enabled.
	PreferencePush = "push"
)

const (
	MinRating = 1
	MaxRating = 5

	// MaxPointsPerAccrual caps the points one check-in or review can credit.
	MaxPointsPerAccrual = 100000
)

const (
	DefaultTierCatalog = "default"
	DefaultPageSize    = "50"
)

// DB
const (
	UserAccountTable   = "user_account"
	UserAuthIndexTable = "user_account_by_auth"
	CheckInTable       = "check_in_record"
	ReviewTable        = "review_record"
	TierTable          = "tier"
	FcmTable           = "fcm"
)
