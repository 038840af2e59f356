package inbound

import (
	"context"

	"agrobid-auction-engine/internal/domain/auction"
	"agrobid-auction-engine/internal/domain/bid"
	"agrobid-auction-engine/internal/domain/participant"
	"agrobid-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionEngine defines the operations exposed to callers (UI, API gateway).
// Bid submission is synchronous up to acceptance or rejection; event fan-out
// to subscribers is asynchronous and best-effort.
type AuctionEngine interface {
	// CreateAuction creates a new auction in Scheduled (or Active if the
	// start time has already passed)
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*auction.Auction, error)

	// GetAuctionState returns a consistent snapshot of the auction
	GetAuctionState(ctx context.Context, auctionID uuid.UUID) (*auction.Snapshot, error)

	// ListAuctions retrieves a page of auctions
	ListAuctions(ctx context.Context, req ListAuctionsRequest) ([]*auction.Auction, error)

	// SubmitBid places a bid; the returned error is a *auction.Rejection for
	// recoverable refusals
	SubmitBid(ctx context.Context, req SubmitBidRequest) (*bid.Bid, error)

	// BuyNow ends the auction immediately at the buy-now price in the
	// bidder's favor
	BuyNow(ctx context.Context, req BuyNowRequest) (*shared.Settlement, error)

	// GetBidHistory returns accepted bids newest-first, capped at limit
	// (0 = all)
	GetBidHistory(ctx context.Context, auctionID uuid.UUID, limit int) ([]*bid.Bid, error)

	// GetAuctionView returns a snapshot and the bid history it counts,
	// taken atomically with respect to concurrent bids
	GetAuctionView(ctx context.Context, auctionID uuid.UUID, limit int) (*auction.Snapshot, []*bid.Bid, error)

	// GetParticipants returns per-bidder aggregates in first-bid order
	GetParticipants(ctx context.Context, auctionID uuid.UUID) ([]participant.Participant, error)
}

// request to create an auction
type CreateAuctionRequest struct {
	ProductRef      string    `json:"product_ref"`
	SellerID        uuid.UUID `json:"seller_id"`
	StartingBid     int64     `json:"starting_bid"`
	ReservePrice    int64     `json:"reserve_price"`
	MinBidIncrement int64     `json:"min_bid_increment"`
	BuyNowPrice     *int64    `json:"buy_now_price,omitempty"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	ExtensionWindow string    `json:"extension_window,omitempty"`
	MaxExtensions   *int      `json:"max_extensions,omitempty"`
}

// request to list auctions
type ListAuctionsRequest struct {
	Status   *auction.Status `json:"status,omitempty"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// request to place a bid
type SubmitBidRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    int64     `json:"amount"`
}

// request to buy the lot outright
type BuyNowRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
}
