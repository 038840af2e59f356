package auction

import (
	"fmt"
	"time"
)

// RejectionKind classifies why a bid was refused
type RejectionKind string

const (
	RejectAuctionNotActive RejectionKind = "auction_not_active"
	RejectAuctionEnded     RejectionKind = "auction_ended"
	RejectInvalidAmount    RejectionKind = "invalid_amount"
	RejectBidTooLow        RejectionKind = "bid_too_low"
)

// Rejection is returned to the caller when a bid fails validation. For
// BidTooLow it carries the lowest amount that would have been accepted.
type Rejection struct {
	Kind        RejectionKind
	MinRequired int64
}

func (r *Rejection) Error() string {
	if r.Kind == RejectBidTooLow {
		return fmt.Sprintf("bid rejected: %s (min required %d)", r.Kind, r.MinRequired)
	}
	return fmt.Sprintf("bid rejected: %s", r.Kind)
}

// ValidateBid checks a submission against the auction's current state. Pure
// function over a snapshot; it never mutates the auction. Rules apply in
// order: state, deadline, amount sanity, increment.
func ValidateBid(a *Auction, amount int64, now time.Time) *Rejection {
	if !a.IsActive() {
		return &Rejection{Kind: RejectAuctionNotActive}
	}
	if Expired(a, now) {
		return &Rejection{Kind: RejectAuctionEnded}
	}
	if amount <= 0 {
		return &Rejection{Kind: RejectInvalidAmount}
	}
	if min := a.MinAcceptableBid(); amount < min {
		return &Rejection{Kind: RejectBidTooLow, MinRequired: min}
	}
	return nil
}
