package auction

import "time"

// TimeRemaining returns how long the auction has left before closing,
// floored at zero.
func TimeRemaining(a *Auction, now time.Time) time.Duration {
	remaining := a.EndTime.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired returns true if the auction deadline has passed
func Expired(a *Auction, now time.Time) bool {
	return !now.Before(a.EndTime)
}

// MaybeExtend applies the anti-sniping rule: a bid accepted while less than
// ExtensionWindow remains pushes the deadline to now + ExtensionWindow, up to
// MaxExtensions times per auction. Returns the new end time when an extension
// was applied.
func MaybeExtend(a *Auction, now time.Time) *time.Time {
	if a.ExtensionWindow <= 0 {
		return nil
	}
	if a.ExtensionCount >= a.MaxExtensions {
		return nil
	}
	if a.EndTime.Sub(now) >= a.ExtensionWindow {
		return nil
	}
	a.EndTime = now.Add(a.ExtensionWindow)
	a.ExtensionCount++
	a.UpdatedAt = now
	return &a.EndTime
}
