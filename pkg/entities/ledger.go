package entities

import "time"

type CheckInRecord struct {
	UserID       string    `json:"user_id"`
	EventID      string    `json:"event_id"`
	CheckInCode  string    `json:"check_in_code"`
	PointsEarned int64     `json:"points_earned"`
	CreatedAt    time.Time `json:"created_at"`
}

type ReviewRecord struct {
	UserID       string    `json:"user_id"`
	EventID      string    `json:"event_id"`
	Rating       int       `json:"rating"`
	Text         string    `json:"text,omitempty"`
	Purchased    *bool     `json:"purchased,omitempty"`
	PointsEarned int64     `json:"points_earned"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccrualRecord is the kind-agnostic view of a ledger row.
type AccrualRecord struct {
	UserID       string    `json:"user_id"`
	EventID      string    `json:"event_id"`
	Kind         string    `json:"kind"`
	PointsEarned int64     `json:"points_earned"`
	CreatedAt    time.Time `json:"created_at"`
}

type CheckInRequest struct {
	UserID       string `json:"-"`
	EventID      string `json:"-"`
	CheckInCode  string `json:"check_in_code"`
	PointsEarned int64  `json:"points_earned"`
}

type ReviewRequest struct {
	UserID       string `json:"-"`
	EventID      string `json:"-"`
	Rating       int    `json:"rating"`
	Text         string `json:"text,omitempty"`
	Purchased    *bool  `json:"purchased,omitempty"`
	PointsEarned int64  `json:"points_earned"`
}

type Tier struct {
	Order          int    `json:"order"`
	Name           string `json:"name"`
	RequiredPoints int64  `json:"required_points"`
}
