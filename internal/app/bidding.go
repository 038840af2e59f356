package app

import (
	"context"
	"fmt"
	"time"

	"agrobid-auction-engine/internal/domain/auction"
	"agrobid-auction-engine/internal/domain/bid"
	"agrobid-auction-engine/internal/domain/shared"
	"agrobid-auction-engine/internal/ports/inbound"
	"agrobid-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
)

// storageAttempts bounds retries against the durable store before an
// acceptance is rolled back and reported as unavailable.
const storageAttempts = 3

// checkpoint captures the auction fields a bid acceptance mutates, so a
// failed persistence can restore them exactly.
type checkpoint struct {
	currentHighestBid int64
	currentLeaderID   *uuid.UUID
	totalBids         int
	totalParticipants int
	endTime           time.Time
	extensionCount    int
	status            auction.Status
	winnerID          *uuid.UUID
	updatedAt         time.Time
}

func takeCheckpoint(a *auction.Auction) checkpoint {
	return checkpoint{
		currentHighestBid: a.CurrentHighestBid,
		currentLeaderID:   a.CurrentLeaderID,
		totalBids:         a.TotalBids,
		totalParticipants: a.TotalParticipants,
		endTime:           a.EndTime,
		extensionCount:    a.ExtensionCount,
		status:            a.Status,
		winnerID:          a.WinnerID,
		updatedAt:         a.UpdatedAt,
	}
}

func (c checkpoint) restore(a *auction.Auction) {
	a.CurrentHighestBid = c.currentHighestBid
	a.CurrentLeaderID = c.currentLeaderID
	a.TotalBids = c.totalBids
	a.TotalParticipants = c.totalParticipants
	a.EndTime = c.endTime
	a.ExtensionCount = c.extensionCount
	a.Status = c.status
	a.WinnerID = c.winnerID
	a.UpdatedAt = c.updatedAt
}

// SubmitBid places a bid. The whole operation runs under the auction's
// serialization guard: validation, ledger append, participant update,
// extension check, and persistence succeed together or not at all. The
// caller learns the outcome before this returns; event fan-out is async.
func (e *AuctionEngine) SubmitBid(ctx context.Context, req inbound.SubmitBidRequest) (*bid.Bid, error) {
	r, err := e.room(req.AuctionID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := e.now()
	r.auction.Activate(now)

	if rej := auction.ValidateBid(r.auction, req.Amount, now); rej != nil {
		e.logger.Warn().
			Str("auction_id", req.AuctionID.String()).
			Str("bidder_id", req.BidderID.String()).
			Int64("amount", req.Amount).
			Str("reason", string(rej.Kind)).
			Msg("Bid rejected")
		return nil, rej
	}

	newBid := &bid.Bid{
		ID:          uuid.New(),
		AuctionID:   req.AuctionID,
		BidderID:    req.BidderID,
		Amount:      req.Amount,
		SubmittedAt: now,
	}

	cp := takeCheckpoint(r.auction)
	psnap := r.participants.Snapshot(req.BidderID)

	r.ledger.Append(newBid)
	firstBid := r.participants.RecordBid(req.BidderID, req.Amount)

	r.auction.CurrentHighestBid = r.ledger.CurrentHighestBid()
	r.auction.CurrentLeaderID = r.ledger.CurrentLeaderID()
	r.auction.TotalBids = r.ledger.Len()
	if firstBid {
		r.auction.TotalParticipants++
	}
	r.auction.UpdatedAt = now

	extendedTo := auction.MaybeExtend(r.auction, now)

	if err := e.persistAccepted(ctx, r, newBid, req.BidderID); err != nil {
		r.ledger.RemoveLast()
		r.participants.Restore(req.BidderID, psnap)
		cp.restore(r.auction)
		e.logger.Error().Err(err).
			Str("auction_id", req.AuctionID.String()).
			Str("bid_id", newBid.ID.String()).
			Msg("Rolled back bid acceptance after storage failure")
		return nil, fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
	}

	if extendedTo != nil && e.scheduler != nil {
		if err := e.scheduler.ScheduleClose(r.auction.ID, *extendedTo); err != nil {
			e.logger.Error().Err(err).Str("auction_id", req.AuctionID.String()).Msg("Failed to reschedule close after extension")
		}
	}

	e.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("bidder_id", req.BidderID.String()).
		Int64("amount", req.Amount).
		Uint64("server_sequence", newBid.ServerSequence).
		Bool("extended", extendedTo != nil).
		Msg("Bid accepted")

	e.emit(outbound.Event{
		Type:      outbound.EventTypeBidAccepted,
		AuctionID: req.AuctionID,
		Data: map[string]interface{}{
			"bid_id":              newBid.ID.String(),
			"bidder_id":           newBid.BidderID.String(),
			"amount":              newBid.Amount,
			"server_sequence":     newBid.ServerSequence,
			"current_highest_bid": r.auction.CurrentHighestBid,
			"end_time":            r.auction.EndTime.Format(time.RFC3339),
		},
		Timestamp: now.Unix(),
	})
	if extendedTo != nil {
		e.emit(outbound.Event{
			Type:      outbound.EventTypeAuctionExtended,
			AuctionID: req.AuctionID,
			Data: map[string]interface{}{
				"end_time":        extendedTo.Format(time.RFC3339),
				"extension_count": r.auction.ExtensionCount,
			},
			Timestamp: now.Unix(),
		})
	}

	return newBid, nil
}

// BuyNow ends the auction immediately at the buy-now price in the bidder's
// favor, bypassing the increment rule and the close-time reserve check.
func (e *AuctionEngine) BuyNow(ctx context.Context, req inbound.BuyNowRequest) (*shared.Settlement, error) {
	r, err := e.room(req.AuctionID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := e.now()
	r.auction.Activate(now)

	if !r.auction.IsActive() {
		return nil, &auction.Rejection{Kind: auction.RejectAuctionNotActive}
	}
	if auction.Expired(r.auction, now) {
		return nil, &auction.Rejection{Kind: auction.RejectAuctionEnded}
	}
	if !r.auction.HasBuyNow() {
		return nil, shared.ErrBuyNowUnavailable
	}
	// The buy-now option lapses once open bidding passes its price;
	// settling below the standing minimum would undercut the leader.
	if r.auction.MinAcceptableBid() > *r.auction.BuyNowPrice {
		return nil, shared.ErrBuyNowUnavailable
	}

	terminal := &bid.Bid{
		ID:          uuid.New(),
		AuctionID:   req.AuctionID,
		BidderID:    req.BidderID,
		Amount:      *r.auction.BuyNowPrice,
		IsBuyNow:    true,
		SubmittedAt: now,
	}

	cp := takeCheckpoint(r.auction)
	psnap := r.participants.Snapshot(req.BidderID)

	r.ledger.Append(terminal)
	firstBid := r.participants.RecordBid(req.BidderID, terminal.Amount)

	r.auction.CurrentHighestBid = r.ledger.CurrentHighestBid()
	r.auction.CurrentLeaderID = r.ledger.CurrentLeaderID()
	r.auction.TotalBids = r.ledger.Len()
	if firstBid {
		r.auction.TotalParticipants++
	}
	r.auction.Status = auction.StatusSettled
	winnerID := req.BidderID
	r.auction.WinnerID = &winnerID
	r.auction.UpdatedAt = now

	if err := e.persistAccepted(ctx, r, terminal, req.BidderID); err != nil {
		r.ledger.RemoveLast()
		r.participants.Restore(req.BidderID, psnap)
		cp.restore(r.auction)
		e.logger.Error().Err(err).
			Str("auction_id", req.AuctionID.String()).
			Msg("Rolled back buy-now after storage failure")
		return nil, fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
	}

	r.participants.MarkWinner(req.BidderID)
	if err := e.participantRepo.SetWinner(ctx, req.AuctionID, req.BidderID); err != nil {
		e.logger.Error().Err(err).Str("auction_id", req.AuctionID.String()).Msg("Failed to persist winner flag")
	}

	finalPrice := terminal.Amount
	settlement := &shared.Settlement{
		AuctionID:      req.AuctionID,
		WinnerID:       &winnerID,
		FinalPrice:     &finalPrice,
		ReserveReached: terminal.Amount >= r.auction.ReservePrice,
		Status:         string(r.auction.Status),
	}

	e.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("winner_id", winnerID.String()).
		Int64("final_price", finalPrice).
		Msg("Auction won via buy-now")

	e.emit(outbound.Event{
		Type:      outbound.EventTypeAuctionClosed,
		AuctionID: req.AuctionID,
		Data:      map[string]interface{}{"reason": "buy_now"},
		Timestamp: now.Unix(),
	})
	e.emit(outbound.Event{
		Type:      outbound.EventTypeAuctionSettled,
		AuctionID: req.AuctionID,
		Data: map[string]interface{}{
			"winner_id":   winnerID.String(),
			"final_price": finalPrice,
			"buy_now":     true,
		},
		Timestamp: now.Unix(),
	})

	return settlement, nil
}

// CloseIfExpired transitions the auction to Closed if its deadline has
// passed. Idempotent; it shares the room guard with SubmitBid so an expiry
// sweep can never race a bid that arrived before the deadline. Returns
// whether the auction closed and its current end time (which the sweep uses
// to reschedule auctions that were extended after being scheduled).
func (e *AuctionEngine) CloseIfExpired(ctx context.Context, auctionID uuid.UUID) (bool, time.Time, error) {
	r, err := e.room(auctionID)
	if err != nil {
		return false, time.Time{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := e.now()
	r.auction.Activate(now)

	if r.auction.IsClosed() {
		return false, r.auction.EndTime, nil
	}
	if !auction.Expired(r.auction, now) {
		return false, r.auction.EndTime, nil
	}

	r.auction.Close(now)
	if err := e.auctionRepo.Update(ctx, r.auction); err != nil {
		// Reopen so a later sweep retries the close.
		r.auction.Status = auction.StatusActive
		e.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to persist auction close")
		return false, r.auction.EndTime, fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
	}

	e.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction closed")

	e.emit(outbound.Event{
		Type:      outbound.EventTypeAuctionClosed,
		AuctionID: auctionID,
		Data: map[string]interface{}{
			"current_highest_bid": r.auction.CurrentHighestBid,
			"reserve_reached":     r.auction.ReserveReached(),
		},
		Timestamp: now.Unix(),
	})

	return true, r.auction.EndTime, nil
}

// Settle finalizes a closed auction. The winner is the current leader only
// if the reserve was reached; otherwise the top bid stays on record with no
// winner.
func (e *AuctionEngine) Settle(ctx context.Context, auctionID uuid.UUID) (*shared.Settlement, error) {
	r, err := e.room(auctionID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.auction.IsSettled() {
		return nil, shared.ErrAuctionSettled
	}
	if r.auction.Status != auction.StatusClosed {
		return nil, shared.ErrAuctionNotClosed
	}

	now := e.now()
	reserveReached := r.auction.ReserveReached()
	winnerID := r.auction.Settle(now)

	if winnerID != nil {
		r.participants.MarkWinner(*winnerID)
	}

	if err := e.auctionRepo.Update(ctx, r.auction); err != nil {
		r.auction.Status = auction.StatusClosed
		r.auction.WinnerID = nil
		if winnerID != nil {
			e.unmarkWinnerLocked(r, *winnerID)
		}
		e.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to persist settlement")
		return nil, fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
	}
	if winnerID != nil {
		if err := e.participantRepo.SetWinner(ctx, auctionID, *winnerID); err != nil {
			e.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to persist winner flag")
		}
	}

	settlement := &shared.Settlement{
		AuctionID:      auctionID,
		WinnerID:       winnerID,
		ReserveReached: reserveReached,
		Status:         string(r.auction.Status),
	}
	data := map[string]interface{}{"reserve_reached": reserveReached}
	if winnerID != nil {
		finalPrice := r.auction.CurrentHighestBid
		settlement.FinalPrice = &finalPrice
		data["winner_id"] = winnerID.String()
		data["final_price"] = finalPrice

		e.logger.Info().
			Str("auction_id", auctionID.String()).
			Str("winner_id", winnerID.String()).
			Int64("final_price", finalPrice).
			Msg("Auction settled with winner")
	} else {
		e.logger.Info().
			Str("auction_id", auctionID.String()).
			Bool("reserve_reached", reserveReached).
			Int("total_bids", r.auction.TotalBids).
			Msg("Auction settled with no winner")
	}

	e.emit(outbound.Event{
		Type:      outbound.EventTypeAuctionSettled,
		AuctionID: auctionID,
		Data:      data,
		Timestamp: now.Unix(),
	})

	return settlement, nil
}

// SweepAuction is the scheduler entry point: close if expired, then settle.
// Returns the settlement when the auction finished, or the auction's current
// end time when it is still live (extended after scheduling).
func (e *AuctionEngine) SweepAuction(ctx context.Context, auctionID uuid.UUID) (*shared.Settlement, time.Time, error) {
	closed, endTime, err := e.CloseIfExpired(ctx, auctionID)
	if err != nil {
		return nil, endTime, err
	}
	if !closed {
		// Either still live or already closed; only settle in the latter case.
		r, rerr := e.room(auctionID)
		if rerr != nil {
			return nil, endTime, rerr
		}
		r.mu.Lock()
		status := r.auction.Status
		r.mu.Unlock()
		if status == auction.StatusSettled {
			return nil, endTime, shared.ErrAuctionSettled
		}
		if status != auction.StatusClosed {
			return nil, endTime, nil
		}
	}

	settlement, err := e.Settle(ctx, auctionID)
	if err != nil {
		return nil, endTime, err
	}
	return settlement, endTime, nil
}

// persistAccepted writes an accepted bid, the bidder's aggregate, and the
// auction's updated fields, with bounded retry per write. Any exhausted
// failure bubbles up so the caller rolls back the in-memory acceptance.
func (e *AuctionEngine) persistAccepted(ctx context.Context, r *room, b *bid.Bid, bidderID uuid.UUID) error {
	if err := e.withRetry(func() error { return e.bidRepo.Append(ctx, b) }); err != nil {
		return fmt.Errorf("append bid: %w", err)
	}

	p, _ := r.participants.Get(bidderID)
	if err := e.withRetry(func() error { return e.participantRepo.Upsert(ctx, &p) }); err != nil {
		e.deleteBidBestEffort(ctx, b.ID)
		return fmt.Errorf("upsert participant: %w", err)
	}

	if err := e.withRetry(func() error { return e.auctionRepo.Update(ctx, r.auction) }); err != nil {
		e.deleteBidBestEffort(ctx, b.ID)
		return fmt.Errorf("update auction: %w", err)
	}
	return nil
}

func (e *AuctionEngine) withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < storageAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(time.Duration(attempt+1) * 25 * time.Millisecond)
	}
	return err
}

func (e *AuctionEngine) deleteBidBestEffort(ctx context.Context, bidID uuid.UUID) {
	if err := e.bidRepo.Delete(ctx, bidID); err != nil {
		e.logger.Error().Err(err).Str("bid_id", bidID.String()).Msg("Failed to remove bid after partial persistence")
	}
}

// unmarkWinnerLocked reverts a winner flag set during a settlement whose
// persistence failed; callers hold the room mutex.
func (e *AuctionEngine) unmarkWinnerLocked(r *room, userID uuid.UUID) {
	snap := r.participants.Snapshot(userID)
	if snap != nil {
		snap.IsWinner = false
		r.participants.Restore(userID, snap)
	}
}
