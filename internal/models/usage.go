package models

import "time"

// UsageWindow is a user's generation count for the current monthly period.
//
// Count is never negative. Once now >= ResetAt the window is expired and counts as zero.
type UsageWindow struct {
	UserID  string    `json:"userId"`
	Count   int       `json:"count"`
	ResetAt time.Time `json:"resetAt"`
}

// NextResetAt returns the first instant of the UTC month following now.
func NextResetAt(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// NewUsageWindow starts an empty window for userID ending at the next period boundary.
func NewUsageWindow(userID string, now time.Time) UsageWindow {
	return UsageWindow{UserID: userID, ResetAt: NextResetAt(now)}
}

// Expired reports whether the window's period has ended.
func (w UsageWindow) Expired(now time.Time) bool {
	return !now.Before(w.ResetAt)
}

// Current returns the window as it applies at now, rolled forward to an empty
// window if it has expired. The boolean reports whether a roll happened.
func (w UsageWindow) Current(now time.Time) (UsageWindow, bool) {
	if !w.Expired(now) {
		return w, false
	}
	return NewUsageWindow(w.UserID, now), true
}

// Remaining returns how many generations are left under limit, never below zero.
func (w UsageWindow) Remaining(limit int) int {
	if n := limit - w.Count; n > 0 {
		return n
	}
	return 0
}
