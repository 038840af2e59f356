package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agrobid-auction-engine/internal/domain/auction"
	"agrobid-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionRepository implements the auction repository interface
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

const auctionColumns = `id, product_ref, seller_id, starting_bid, reserve_price, min_bid_increment,
		buy_now_price, start_time, end_time, extension_window_ms, max_extensions, extension_count,
		status, current_highest_bid, current_leader_id, total_bids, total_participants, winner_id,
		created_at, updated_at`

// Create persists a new auction
func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.ProductRef,
		a.SellerID,
		a.StartingBid,
		a.ReservePrice,
		a.MinBidIncrement,
		a.BuyNowPrice,
		a.StartTime,
		a.EndTime,
		a.ExtensionWindow.Milliseconds(),
		a.MaxExtensions,
		a.ExtensionCount,
		a.Status,
		a.CurrentHighestBid,
		a.CurrentLeaderID,
		a.TotalBids,
		a.TotalParticipants,
		a.WinnerID,
		a.CreatedAt,
		a.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}

	return nil
}

// GetByID retrieves an auction by ID
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := scanAuction(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	return a, nil
}

// List retrieves a page of auctions with an optional status filter
func (r *AuctionRepository) List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error) {
	baseQuery := `SELECT ` + auctionColumns + ` FROM auctions `

	var whereClause string
	var args []interface{}
	argCount := 1

	if status != nil {
		whereClause = "WHERE status = $1"
		args = append(args, *status)
		argCount++
	}

	limitClause := fmt.Sprintf("LIMIT $%d", argCount)
	offsetClause := fmt.Sprintf("OFFSET $%d", argCount+1)
	args = append(args, pageSize, (page-1)*pageSize)

	query := baseQuery + whereClause + " ORDER BY created_at DESC " + limitClause + " " + offsetClause

	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer rows.Close()

	return collectAuctions(rows)
}

// ListOpen retrieves every auction not yet settled
func (r *AuctionRepository) ListOpen(ctx context.Context) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status != 'settled' ORDER BY end_time ASC`

	rows, err := r.conn.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list open auctions: %w", err)
	}
	defer rows.Close()

	return collectAuctions(rows)
}

// Update persists the auction's mutable fields
func (r *AuctionRepository) Update(ctx context.Context, a *auction.Auction) error {
	query := `
		UPDATE auctions
		SET end_time = $2, extension_count = $3, status = $4, current_highest_bid = $5,
		    current_leader_id = $6, total_bids = $7, total_participants = $8, winner_id = $9,
		    updated_at = $10
		WHERE id = $1
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.EndTime,
		a.ExtensionCount,
		a.Status,
		a.CurrentHighestBid,
		a.CurrentLeaderID,
		a.TotalBids,
		a.TotalParticipants,
		a.WinnerID,
		a.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return shared.ErrAuctionNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var a auction.Auction
	var extensionWindowMs int64

	err := row.Scan(
		&a.ID,
		&a.ProductRef,
		&a.SellerID,
		&a.StartingBid,
		&a.ReservePrice,
		&a.MinBidIncrement,
		&a.BuyNowPrice,
		&a.StartTime,
		&a.EndTime,
		&extensionWindowMs,
		&a.MaxExtensions,
		&a.ExtensionCount,
		&a.Status,
		&a.CurrentHighestBid,
		&a.CurrentLeaderID,
		&a.TotalBids,
		&a.TotalParticipants,
		&a.WinnerID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ExtensionWindow = time.Duration(extensionWindowMs) * time.Millisecond
	return &a, nil
}

func collectAuctions(rows *sql.Rows) ([]*auction.Auction, error) {
	var auctions []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return auctions, nil
}
