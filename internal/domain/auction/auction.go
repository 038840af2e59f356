package auction

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an auction
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusClosed    Status = "closed"
	StatusSettled   Status = "settled"
)

// Auction represents a live auction for a single lot. All monetary amounts
// are in cents.
type Auction struct {
	ID                uuid.UUID     `json:"id"`
	ProductRef        string        `json:"product_ref"`
	SellerID          uuid.UUID     `json:"seller_id"`
	StartingBid       int64         `json:"starting_bid"`
	ReservePrice      int64         `json:"reserve_price"`
	MinBidIncrement   int64         `json:"min_bid_increment"`
	BuyNowPrice       *int64        `json:"buy_now_price,omitempty"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	ExtensionWindow   time.Duration `json:"extension_window"`
	MaxExtensions     int           `json:"max_extensions"`
	ExtensionCount    int           `json:"extension_count"`
	Status            Status        `json:"status"`
	CurrentHighestBid int64         `json:"current_highest_bid"`
	CurrentLeaderID   *uuid.UUID    `json:"current_leader_id,omitempty"`
	TotalBids         int           `json:"total_bids"`
	TotalParticipants int           `json:"total_participants"`
	WinnerID          *uuid.UUID    `json:"winner_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// IsActive returns true if the auction is currently accepting bids
func (a *Auction) IsActive() bool {
	return a.Status == StatusActive
}

// IsClosed returns true if the auction no longer accepts bids
func (a *Auction) IsClosed() bool {
	return a.Status == StatusClosed || a.Status == StatusSettled
}

// IsSettled returns true if a winner (or "no winner") has been finalized
func (a *Auction) IsSettled() bool {
	return a.Status == StatusSettled
}

// HasBuyNow returns true if the auction can be won instantly at a fixed price
func (a *Auction) HasBuyNow() bool {
	return a.BuyNowPrice != nil && *a.BuyNowPrice > 0
}

// ReserveReached returns true if the leading bid meets the reserve price
func (a *Auction) ReserveReached() bool {
	return a.TotalBids > 0 && a.CurrentHighestBid >= a.ReservePrice
}

// MinAcceptableBid returns the lowest amount the next bid must reach.
// The first bid only has to meet the starting bid.
func (a *Auction) MinAcceptableBid() int64 {
	if a.TotalBids == 0 {
		return a.StartingBid
	}
	return a.CurrentHighestBid + a.MinBidIncrement
}

// Activate transitions Scheduled -> Active once the start time has passed.
// Idempotent; a no-op if the auction is already active or beyond.
func (a *Auction) Activate(now time.Time) bool {
	if a.Status != StatusScheduled || now.Before(a.StartTime) {
		return false
	}
	a.Status = StatusActive
	a.UpdatedAt = now
	return true
}

// Close transitions Active -> Closed. Idempotent for already-closed auctions.
func (a *Auction) Close(now time.Time) bool {
	if a.IsClosed() {
		return false
	}
	a.Status = StatusClosed
	a.UpdatedAt = now
	return true
}

// Settle finalizes the auction from Closed state. The winner is the current
// leader only if the reserve was reached; otherwise the top bid stays on
// record with no winner assigned.
func (a *Auction) Settle(now time.Time) *uuid.UUID {
	a.Status = StatusSettled
	a.UpdatedAt = now
	if a.ReserveReached() {
		a.WinnerID = a.CurrentLeaderID
	}
	return a.WinnerID
}
