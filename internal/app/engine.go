package app

import (
	"context"
	"sync"
	"time"

	"agrobid-auction-engine/internal/domain/auction"
	"agrobid-auction-engine/internal/domain/bid"
	"agrobid-auction-engine/internal/domain/participant"
	"agrobid-auction-engine/internal/domain/shared"
	"agrobid-auction-engine/internal/ports/inbound"
	"agrobid-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CloseScheduler schedules the close sweep for an auction. Extensions
// reschedule the same auction at its pushed-out deadline.
type CloseScheduler interface {
	ScheduleClose(auctionID uuid.UUID, endTime time.Time) error
}

// EngineDefaults are applied to auctions created without explicit
// anti-sniping parameters.
type EngineDefaults struct {
	ExtensionWindow time.Duration
	MaxExtensions   int
}

// room is the per-auction serialization unit: every state-mutating operation
// for one auction runs under its mutex, which is what makes the ledger's
// server sequence a valid total order. Different auctions contend on nothing.
type room struct {
	mu           sync.Mutex
	auction      *auction.Auction
	ledger       *bid.Ledger
	participants *participant.Registry
}

// AuctionEngine is the authoritative server-side bidding engine. It owns the
// in-memory auction state, persists accepted bids synchronously, and fans
// events out to subscribers asynchronously.
type AuctionEngine struct {
	auctionRepo     outbound.AuctionRepository
	bidRepo         outbound.BidRepository
	participantRepo outbound.ParticipantRepository
	broadcaster     outbound.Broadcaster
	scheduler       CloseScheduler
	defaults        EngineDefaults
	now             func() time.Time

	mu    sync.RWMutex
	rooms map[uuid.UUID]*room

	logger zerolog.Logger
}

type AuctionEngineParams struct {
	AuctionRepo     outbound.AuctionRepository
	BidRepo         outbound.BidRepository
	ParticipantRepo outbound.ParticipantRepository
	Broadcaster     outbound.Broadcaster
	Scheduler       CloseScheduler
	Defaults        EngineDefaults
	Now             func() time.Time
	Logger          zerolog.Logger
}

// NewAuctionEngine creates a new auction engine
func NewAuctionEngine(params AuctionEngineParams) *AuctionEngine {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &AuctionEngine{
		auctionRepo:     params.AuctionRepo,
		bidRepo:         params.BidRepo,
		participantRepo: params.ParticipantRepo,
		broadcaster:     params.Broadcaster,
		scheduler:       params.Scheduler,
		defaults:        params.Defaults,
		now:             now,
		rooms:           make(map[uuid.UUID]*room),
		logger:          params.Logger.With().Str("component", "auction_engine").Logger(),
	}
}

// SetScheduler sets the close scheduler
func (e *AuctionEngine) SetScheduler(scheduler CloseScheduler) {
	e.scheduler = scheduler
}

// CreateAuction creates a new auction
func (e *AuctionEngine) CreateAuction(ctx context.Context, req inbound.CreateAuctionRequest) (*auction.Auction, error) {
	e.logger.Info().
		Str("product_ref", req.ProductRef).
		Str("seller_id", req.SellerID.String()).
		Int64("starting_bid", req.StartingBid).
		Int64("reserve_price", req.ReservePrice).
		Msg("Attempting to create auction")

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		e.logger.Error().Err(err).Str("start_time", req.StartTime).Msg("Invalid start time format")
		return nil, shared.ErrInvalidTimeFormat
	}

	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		e.logger.Error().Err(err).Str("end_time", req.EndTime).Msg("Invalid end time format")
		return nil, shared.ErrInvalidTimeFormat
	}

	if !endTime.After(startTime) {
		e.logger.Warn().Time("start_time", startTime).Time("end_time", endTime).Msg("End time must be after start time")
		return nil, shared.ErrInvalidEndTime
	}
	if req.StartingBid <= 0 {
		e.logger.Warn().Int64("starting_bid", req.StartingBid).Msg("Starting bid must be greater than 0")
		return nil, shared.ErrInvalidStartingBid
	}
	if req.MinBidIncrement <= 0 {
		e.logger.Warn().Int64("min_bid_increment", req.MinBidIncrement).Msg("Minimum bid increment must be greater than 0")
		return nil, shared.ErrInvalidIncrement
	}
	if req.BuyNowPrice != nil && *req.BuyNowPrice < req.StartingBid {
		e.logger.Warn().Int64("buy_now_price", *req.BuyNowPrice).Msg("Buy-now price below starting bid")
		return nil, shared.ErrInvalidBuyNowPrice
	}

	extensionWindow := e.defaults.ExtensionWindow
	if req.ExtensionWindow != "" {
		extensionWindow, err = time.ParseDuration(req.ExtensionWindow)
		if err != nil || extensionWindow < 0 {
			e.logger.Error().Str("extension_window", req.ExtensionWindow).Msg("Invalid extension window")
			return nil, shared.ErrInvalidTimeFormat
		}
	}
	maxExtensions := e.defaults.MaxExtensions
	if req.MaxExtensions != nil && *req.MaxExtensions >= 0 {
		maxExtensions = *req.MaxExtensions
	}

	now := e.now()
	a := &auction.Auction{
		ID:              uuid.New(),
		ProductRef:      req.ProductRef,
		SellerID:        req.SellerID,
		StartingBid:     req.StartingBid,
		ReservePrice:    req.ReservePrice,
		MinBidIncrement: req.MinBidIncrement,
		BuyNowPrice:     req.BuyNowPrice,
		StartTime:       startTime,
		EndTime:         endTime,
		ExtensionWindow: extensionWindow,
		MaxExtensions:   maxExtensions,
		Status:          auction.StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	a.Activate(now)

	if err := e.auctionRepo.Create(ctx, a); err != nil {
		e.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to save auction")
		return nil, err
	}

	e.mu.Lock()
	e.rooms[a.ID] = &room{
		auction:      a,
		ledger:       bid.NewLedger(),
		participants: participant.NewRegistry(a.ID),
	}
	e.mu.Unlock()

	if e.scheduler != nil {
		if err := e.scheduler.ScheduleClose(a.ID, a.EndTime); err != nil {
			// Creation stands; the warm-start sweep picks up unscheduled auctions.
			e.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to schedule auction close")
		}
	}

	e.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("status", string(a.Status)).
		Time("end_time", a.EndTime).
		Msg("Auction created")

	e.emit(outbound.Event{
		Type:      outbound.EventTypeAuctionCreated,
		AuctionID: a.ID,
		Data: map[string]interface{}{
			"product_ref":  a.ProductRef,
			"starting_bid": a.StartingBid,
			"end_time":     a.EndTime.Format(time.RFC3339),
			"status":       string(a.Status),
		},
		Timestamp: now.Unix(),
	})

	return a, nil
}

// Activate transitions a scheduled auction to active once its start time has
// passed. Idempotent.
func (e *AuctionEngine) Activate(ctx context.Context, auctionID uuid.UUID) error {
	r, err := e.room(auctionID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.auction.Activate(e.now()) {
		return nil
	}
	if err := e.auctionRepo.Update(ctx, r.auction); err != nil {
		e.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to persist activation")
		return err
	}
	e.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction activated")
	return nil
}

// GetAuctionState returns a consistent snapshot of the auction, taken under
// the same guard that serializes bids.
func (e *AuctionEngine) GetAuctionState(ctx context.Context, auctionID uuid.UUID) (*auction.Snapshot, error) {
	r, err := e.room(auctionID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return e.snapshotLocked(r), nil
}

// GetBidHistory returns accepted bids newest-first, capped at limit (0 = all)
func (e *AuctionEngine) GetBidHistory(ctx context.Context, auctionID uuid.UUID, limit int) ([]*bid.Bid, error) {
	r, err := e.room(auctionID)
	if err != nil {
		return nil, err
	}

	var out []*bid.Bid
	it := r.ledger.History()
	for b := it.Next(); b != nil; b = it.Next() {
		out = append(out, b)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// GetAuctionView returns a snapshot together with the bid history it counts,
// taken under one room guard so the two cannot straddle a concurrent accept.
// History is newest-first, capped at limit (0 = all).
func (e *AuctionEngine) GetAuctionView(ctx context.Context, auctionID uuid.UUID, limit int) (*auction.Snapshot, []*bid.Bid, error) {
	r, err := e.room(auctionID)
	if err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := e.snapshotLocked(r)
	var history []*bid.Bid
	it := r.ledger.History()
	for b := it.Next(); b != nil; b = it.Next() {
		history = append(history, b)
		if limit > 0 && len(history) >= limit {
			break
		}
	}
	return snap, history, nil
}

// GetParticipants returns per-bidder aggregates in first-bid order
func (e *AuctionEngine) GetParticipants(ctx context.Context, auctionID uuid.UUID) ([]participant.Participant, error) {
	r, err := e.room(auctionID)
	if err != nil {
		return nil, err
	}
	return r.participants.List(), nil
}

// ListAuctions retrieves a page of auctions
func (e *AuctionEngine) ListAuctions(ctx context.Context, req inbound.ListAuctionsRequest) ([]*auction.Auction, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 10
	}
	return e.auctionRepo.List(ctx, req.Status, req.Page, req.PageSize)
}

// LoadOpenAuctions rebuilds in-memory rooms from storage after a restart and
// reschedules their close sweeps.
func (e *AuctionEngine) LoadOpenAuctions(ctx context.Context) error {
	auctions, err := e.auctionRepo.ListOpen(ctx)
	if err != nil {
		return err
	}

	for _, a := range auctions {
		ledger := bid.NewLedger()
		registry := participant.NewRegistry(a.ID)

		bids, err := e.bidRepo.GetByAuctionID(ctx, a.ID)
		if err != nil {
			return err
		}
		// Stored rows carry their durable sequences; restoring through
		// Append would re-stamp them and collide with persisted rows
		// after a rollback gap.
		ledger.Restore(bids)
		for _, b := range bids {
			registry.RecordBid(b.BidderID, b.Amount)
		}

		e.mu.Lock()
		e.rooms[a.ID] = &room{auction: a, ledger: ledger, participants: registry}
		e.mu.Unlock()

		if e.scheduler != nil && !a.IsClosed() {
			if err := e.scheduler.ScheduleClose(a.ID, a.EndTime); err != nil {
				e.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to reschedule auction close")
			}
		}

		e.logger.Info().
			Str("auction_id", a.ID.String()).
			Str("status", string(a.Status)).
			Int("bids", ledger.Len()).
			Msg("Auction restored")
	}

	return nil
}

// room looks up the serialization unit for an auction
func (e *AuctionEngine) room(auctionID uuid.UUID) (*room, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.rooms[auctionID]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	return r, nil
}

// snapshotLocked builds a snapshot; callers hold the room mutex
func (e *AuctionEngine) snapshotLocked(r *room) *auction.Snapshot {
	a := r.auction
	now := e.now()
	return &auction.Snapshot{
		AuctionID:         a.ID,
		ProductRef:        a.ProductRef,
		Status:            a.Status,
		StartingBid:       a.StartingBid,
		MinBidIncrement:   a.MinBidIncrement,
		BuyNowPrice:       a.BuyNowPrice,
		CurrentHighestBid: a.CurrentHighestBid,
		CurrentLeaderID:   a.CurrentLeaderID,
		TotalBids:         a.TotalBids,
		TotalParticipants: a.TotalParticipants,
		ReserveReached:    a.ReserveReached(),
		EndTime:           a.EndTime,
		TimeRemaining:     auction.TimeRemaining(a, now),
		WinnerID:          a.WinnerID,
	}
}

// emit broadcasts an event without blocking the caller. Broadcast failures
// are logged and never affect the operation that produced the event.
func (e *AuctionEngine) emit(event outbound.Event) {
	if e.broadcaster == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.broadcaster.Publish(ctx, event.AuctionID, event); err != nil {
			e.logger.Error().Err(err).
				Str("auction_id", event.AuctionID.String()).
				Str("event_type", string(event.Type)).
				Msg("Failed to broadcast event")
		}
	}()
}
