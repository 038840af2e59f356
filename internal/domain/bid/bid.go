package bid

import (
	"time"

	"github.com/google/uuid"
)

// Bid represents an accepted bid on an auction. Immutable once appended to
// the ledger. ServerSequence is assigned at acceptance and is the tie-break
// authority between equal amounts; wall-clock time is informational only.
type Bid struct {
	ID             uuid.UUID `json:"id"`
	AuctionID      uuid.UUID `json:"auction_id"`
	BidderID       uuid.UUID `json:"bidder_id"`
	Amount         int64     `json:"amount"`
	ServerSequence uint64    `json:"server_sequence"`
	IsBuyNow       bool      `json:"is_buy_now"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Beats reports whether this bid outranks other under the (amount, sequence)
// order. A later bid at the same amount never displaces the standing leader.
func (b *Bid) Beats(other *Bid) bool {
	if other == nil {
		return true
	}
	if b.Amount != other.Amount {
		return b.Amount > other.Amount
	}
	return b.ServerSequence < other.ServerSequence
}
