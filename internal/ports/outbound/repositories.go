package outbound

import (
	"context"

	"agrobid-auction-engine/internal/domain/auction"
	"agrobid-auction-engine/internal/domain/bid"
	"agrobid-auction-engine/internal/domain/participant"

	"github.com/google/uuid"
)

// AuctionRepository defines durable storage for auction records
type AuctionRepository interface {
	// Create persists a new auction
	Create(ctx context.Context, auction *auction.Auction) error

	// GetByID retrieves an auction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// List retrieves a page of auctions with an optional status filter
	List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error)

	// ListOpen retrieves every auction not yet settled, for warm start
	ListOpen(ctx context.Context) ([]*auction.Auction, error)

	// Update persists the auction's mutable fields
	Update(ctx context.Context, auction *auction.Auction) error
}

// BidRepository defines durable storage for the accepted-bid ledger
type BidRepository interface {
	// Append persists an accepted bid
	Append(ctx context.Context, bid *bid.Bid) error

	// GetByAuctionID retrieves all accepted bids for an auction ordered by
	// server sequence
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)

	// Delete removes a bid whose in-memory acceptance was rolled back
	Delete(ctx context.Context, id uuid.UUID) error
}

// ParticipantRepository defines durable storage for per-bidder aggregates
type ParticipantRepository interface {
	// Upsert persists a participant aggregate
	Upsert(ctx context.Context, p *participant.Participant) error

	// GetByAuctionID retrieves all participants of an auction
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*participant.Participant, error)

	// SetWinner flags the winning bidder at settlement
	SetWinner(ctx context.Context, auctionID, userID uuid.UUID) error
}
