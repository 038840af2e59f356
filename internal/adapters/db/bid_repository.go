package db

import (
	"context"
	"fmt"

	"agrobid-auction-engine/internal/domain/bid"

	"github.com/google/uuid"
)

// BidRepository implements the bid repository interface. The engine
// serializes bids per auction before they reach storage, so inserts carry a
// pre-assigned server sequence and need no row-level conflict handling; the
// unique (auction_id, server_sequence) index is a safety net.
type BidRepository struct {
	conn *Connection
}

// NewBidRepository creates a new bid repository
func NewBidRepository(conn *Connection) *BidRepository {
	return &BidRepository{conn: conn}
}

// Append persists an accepted bid
func (r *BidRepository) Append(ctx context.Context, b *bid.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, bidder_id, amount, server_sequence, is_buy_now, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		b.ID,
		b.AuctionID,
		b.BidderID,
		b.Amount,
		b.ServerSequence,
		b.IsBuyNow,
		b.SubmittedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append bid: %w", err)
	}

	return nil
}

// GetByAuctionID retrieves all accepted bids for an auction ordered by
// server sequence
func (r *BidRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	query := `
		SELECT id, auction_id, bidder_id, amount, server_sequence, is_buy_now, submitted_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY server_sequence ASC
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	var bids []*bid.Bid
	for rows.Next() {
		var b bid.Bid
		err := rows.Scan(
			&b.ID,
			&b.AuctionID,
			&b.BidderID,
			&b.Amount,
			&b.ServerSequence,
			&b.IsBuyNow,
			&b.SubmittedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, &b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}

// Delete removes a bid whose in-memory acceptance was rolled back
func (r *BidRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM bids WHERE id = $1`

	if _, err := r.conn.GetDB().ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete bid: %w", err)
	}

	return nil
}
