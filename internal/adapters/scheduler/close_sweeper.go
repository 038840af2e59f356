package scheduler

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"agrobid-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const scheduleKey = "auction:close_schedule"

// SweepService is the engine surface the sweeper drives: close an auction if
// its deadline has passed, settle it, and report the current end time so
// extended auctions can be rescheduled.
type SweepService interface {
	SweepAuction(ctx context.Context, auctionID uuid.UUID) (*shared.Settlement, time.Time, error)
}

// CloseSweeper keeps a Redis ZSET of auction end times and periodically
// sweeps the due ones through the engine. Extensions rescore the member, so
// a pushed-out auction is never closed early: the engine re-checks the
// deadline under the same per-auction guard that serializes bids.
type CloseSweeper struct {
	redis    *redis.Client
	engine   SweepService
	interval time.Duration
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type CloseSweeperParams struct {
	RedisClient *redis.Client
	Engine      SweepService
	Interval    time.Duration
	Logger      zerolog.Logger
}

func NewCloseSweeper(params CloseSweeperParams) *CloseSweeper {
	ctx, cancel := context.WithCancel(context.Background())

	interval := params.Interval
	if interval <= 0 {
		interval = time.Second
	}

	return &CloseSweeper{
		redis:    params.RedisClient,
		engine:   params.Engine,
		interval: interval,
		logger:   params.Logger.With().Str("component", "close_sweeper").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ScheduleClose adds or rescores an auction in the close schedule. Called on
// creation and again whenever an anti-sniping extension moves the deadline.
func (s *CloseSweeper) ScheduleClose(auctionID uuid.UUID, endTime time.Time) error {
	err := s.redis.ZAdd(s.ctx, scheduleKey, redis.Z{
		Score:  float64(endTime.Unix()),
		Member: auctionID.String(),
	}).Err()

	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to schedule auction close")
		return err
	}

	s.logger.Debug().
		Str("auction_id", auctionID.String()).
		Time("end_time", endTime).
		Msg("Auction close scheduled")

	return nil
}

// Start begins the sweep loop
func (s *CloseSweeper) Start() {
	s.logger.Info().Dur("interval", s.interval).Msg("Starting close sweeper")

	s.wg.Add(1)
	go s.sweepLoop()
}

// Stop gracefully stops the sweeper
func (s *CloseSweeper) Stop() {
	s.logger.Info().Msg("Stopping close sweeper")
	s.cancel()
	s.wg.Wait()
}

func (s *CloseSweeper) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepDue()
		case <-s.ctx.Done():
			s.logger.Info().Msg("Sweep loop stopped")
			return
		}
	}
}

// sweepDue processes every auction whose scheduled end time has passed
func (s *CloseSweeper) sweepDue() {
	now := time.Now().Unix()

	due, err := s.redis.ZRangeByScore(s.ctx, scheduleKey, &redis.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now, 10),
		Count: 10,
	}).Result()

	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read close schedule")
		return
	}

	for _, member := range due {
		auctionID, err := uuid.Parse(member)
		if err != nil {
			s.logger.Error().Err(err).Str("member", member).Msg("Invalid auction ID in close schedule")
			s.redis.ZRem(s.ctx, scheduleKey, member)
			continue
		}

		s.sweepOne(auctionID)
	}
}

func (s *CloseSweeper) sweepOne(auctionID uuid.UUID) {
	settlement, endTime, err := s.engine.SweepAuction(s.ctx, auctionID)

	switch {
	case err != nil:
		if errors.Is(err, shared.ErrAuctionNotFound) || errors.Is(err, shared.ErrAuctionSettled) {
			s.redis.ZRem(s.ctx, scheduleKey, auctionID.String())
			return
		}
		// Transient failure: leave the member in place so the next tick retries.
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Sweep failed")

	case settlement != nil:
		s.redis.ZRem(s.ctx, scheduleKey, auctionID.String())

		evt := s.logger.Info().Str("auction_id", auctionID.String())
		if settlement.WinnerID != nil {
			evt = evt.Str("winner_id", settlement.WinnerID.String())
		}
		if settlement.FinalPrice != nil {
			evt = evt.Int64("final_price", *settlement.FinalPrice)
		}
		evt.Msg("Auction swept to settlement")

	default:
		// Still live: the deadline moved after scheduling. Rescore it.
		if err := s.ScheduleClose(auctionID, endTime); err == nil {
			s.logger.Debug().
				Str("auction_id", auctionID.String()).
				Time("end_time", endTime).
				Msg("Auction rescheduled after extension")
		}
	}
}
