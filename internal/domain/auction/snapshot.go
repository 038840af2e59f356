package auction

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is a consistent read of an auction's public state, taken under the
// same guard that serializes bids. Reconnecting clients receive a snapshot
// instead of replayed events.
type Snapshot struct {
	AuctionID         uuid.UUID     `json:"auction_id"`
	ProductRef        string        `json:"product_ref"`
	Status            Status        `json:"status"`
	StartingBid       int64         `json:"starting_bid"`
	MinBidIncrement   int64         `json:"min_bid_increment"`
	BuyNowPrice       *int64        `json:"buy_now_price,omitempty"`
	CurrentHighestBid int64         `json:"current_highest_bid"`
	CurrentLeaderID   *uuid.UUID    `json:"current_leader_id,omitempty"`
	TotalBids         int           `json:"total_bids"`
	TotalParticipants int           `json:"total_participants"`
	ReserveReached    bool          `json:"reserve_reached"`
	EndTime           time.Time     `json:"end_time"`
	TimeRemaining     time.Duration `json:"time_remaining"`
	WinnerID          *uuid.UUID    `json:"winner_id,omitempty"`
}
