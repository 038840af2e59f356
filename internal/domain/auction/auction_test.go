package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuction(now time.Time) *Auction {
	return &Auction{
		ID:              uuid.New(),
		ProductRef:      "lot-42",
		SellerID:        uuid.New(),
		StartingBid:     10000,
		ReservePrice:    15000,
		MinBidIncrement: 500,
		StartTime:       now.Add(-time.Minute),
		EndTime:         now.Add(time.Hour),
		ExtensionWindow: 2 * time.Minute,
		MaxExtensions:   10,
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestActivate(t *testing.T) {
	now := time.Now()

	a := newTestAuction(now)
	a.Status = StatusScheduled
	a.StartTime = now.Add(time.Minute)

	assert.False(t, a.Activate(now), "must not activate before start time")
	assert.Equal(t, StatusScheduled, a.Status)

	assert.True(t, a.Activate(now.Add(2*time.Minute)))
	assert.Equal(t, StatusActive, a.Status)

	// Idempotent once active
	assert.False(t, a.Activate(now.Add(3*time.Minute)))
	assert.Equal(t, StatusActive, a.Status)
}

func TestClose(t *testing.T) {
	now := time.Now()
	a := newTestAuction(now)

	assert.True(t, a.Close(now))
	assert.Equal(t, StatusClosed, a.Status)

	assert.False(t, a.Close(now), "closing twice is a no-op")
	assert.Equal(t, StatusClosed, a.Status)
}

func TestSettleAssignsWinnerOnlyWhenReserveReached(t *testing.T) {
	now := time.Now()
	leader := uuid.New()

	a := newTestAuction(now)
	a.Status = StatusClosed
	a.TotalBids = 3
	a.CurrentHighestBid = 16000
	a.CurrentLeaderID = &leader

	winner := a.Settle(now)
	require.NotNil(t, winner)
	assert.Equal(t, leader, *winner)
	assert.Equal(t, StatusSettled, a.Status)

	// Below reserve: the top bid stays on record but no winner is assigned.
	b := newTestAuction(now)
	b.Status = StatusClosed
	b.TotalBids = 2
	b.CurrentHighestBid = 12000
	b.CurrentLeaderID = &leader

	assert.Nil(t, b.Settle(now))
	assert.Equal(t, StatusSettled, b.Status)
	assert.Nil(t, b.WinnerID)
	assert.Equal(t, int64(12000), b.CurrentHighestBid)
}

func TestMinAcceptableBid(t *testing.T) {
	now := time.Now()
	a := newTestAuction(now)

	assert.Equal(t, int64(10000), a.MinAcceptableBid(), "first bid only needs to meet the starting bid")

	a.TotalBids = 1
	a.CurrentHighestBid = 10000
	assert.Equal(t, int64(10500), a.MinAcceptableBid())
}

func TestReserveReached(t *testing.T) {
	now := time.Now()
	a := newTestAuction(now)

	assert.False(t, a.ReserveReached(), "no bids yet")

	a.TotalBids = 1
	a.CurrentHighestBid = 14999
	assert.False(t, a.ReserveReached())

	a.CurrentHighestBid = 15000
	assert.True(t, a.ReserveReached())
}

func TestHasBuyNow(t *testing.T) {
	now := time.Now()
	a := newTestAuction(now)
	assert.False(t, a.HasBuyNow())

	price := int64(50000)
	a.BuyNowPrice = &price
	assert.True(t, a.HasBuyNow())
}
