package db

import (
	"context"
	"fmt"

	"agrobid-auction-engine/internal/domain/participant"

	"github.com/google/uuid"
)

// ParticipantRepository implements the participant repository interface
type ParticipantRepository struct {
	conn *Connection
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(conn *Connection) *ParticipantRepository {
	return &ParticipantRepository{conn: conn}
}

// Upsert persists a participant aggregate
func (r *ParticipantRepository) Upsert(ctx context.Context, p *participant.Participant) error {
	query := `
		INSERT INTO participants (auction_id, user_id, bid_count, highest_bid_amount, is_winner)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (auction_id, user_id)
		DO UPDATE SET bid_count = $3, highest_bid_amount = $4, is_winner = $5
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		p.AuctionID,
		p.UserID,
		p.BidCount,
		p.HighestBidAmount,
		p.IsWinner,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert participant: %w", err)
	}

	return nil
}

// GetByAuctionID retrieves all participants of an auction
func (r *ParticipantRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*participant.Participant, error) {
	query := `
		SELECT auction_id, user_id, bid_count, highest_bid_amount, is_winner
		FROM participants
		WHERE auction_id = $1
		ORDER BY highest_bid_amount DESC
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []*participant.Participant
	for rows.Next() {
		var p participant.Participant
		err := rows.Scan(
			&p.AuctionID,
			&p.UserID,
			&p.BidCount,
			&p.HighestBidAmount,
			&p.IsWinner,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, &p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}

	return participants, nil
}

// SetWinner flags the winning bidder at settlement
func (r *ParticipantRepository) SetWinner(ctx context.Context, auctionID, userID uuid.UUID) error {
	query := `
		UPDATE participants
		SET is_winner = TRUE
		WHERE auction_id = $1 AND user_id = $2
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query, auctionID, userID)
	if err != nil {
		return fmt.Errorf("failed to set winner: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("participant not found")
	}

	return nil
}
