package ws

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrobid-auction-engine/internal/domain/auction"
	"agrobid-auction-engine/internal/domain/bid"
	"agrobid-auction-engine/internal/domain/shared"
)

func TestParseClientMessage(t *testing.T) {
	auctionID := uuid.New()
	raw := []byte(`{"type":"place_bid","auction_id":"` + auctionID.String() + `","data":{"amount":12000}}`)

	msg, err := ParseClientMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, MessageTypePlaceBid, msg.Type)
	require.NotNil(t, msg.AuctionID)
	assert.Equal(t, auctionID, *msg.AuctionID)
	assert.Equal(t, float64(12000), msg.Data["amount"])
}

func TestParseClientMessageErrors(t *testing.T) {
	_, err := ParseClientMessage([]byte("{not json"))
	assert.Error(t, err)

	_, err = ParseClientMessage([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, shared.ErrMessageTypeRequired)
}

func TestClientMessageValidate(t *testing.T) {
	auctionID := uuid.New()

	tests := []struct {
		name    string
		msg     ClientMessage
		wantErr error
	}{
		{
			name:    "subscribe without auction id",
			msg:     ClientMessage{Type: MessageTypeSubscribe},
			wantErr: shared.ErrAuctionIDRequired,
		},
		{
			name:    "subscribe with nil auction id",
			msg:     ClientMessage{Type: MessageTypeSubscribe, AuctionID: &uuid.Nil},
			wantErr: shared.ErrAuctionIDRequired,
		},
		{
			name:    "place bid without amount",
			msg:     ClientMessage{Type: MessageTypePlaceBid, AuctionID: &auctionID, Data: map[string]interface{}{}},
			wantErr: shared.ErrInvalidAmount,
		},
		{
			name:    "place bid with non-positive amount",
			msg:     ClientMessage{Type: MessageTypePlaceBid, AuctionID: &auctionID, Data: map[string]interface{}{"amount": float64(0)}},
			wantErr: shared.ErrInvalidAmount,
		},
		{
			name:    "create auction without product ref",
			msg:     ClientMessage{Type: MessageTypeCreateAuction, Data: map[string]interface{}{"end_time": "x", "starting_bid": float64(1)}},
			wantErr: shared.ErrProductRefRequired,
		},
		{
			name:    "create auction without end time",
			msg:     ClientMessage{Type: MessageTypeCreateAuction, Data: map[string]interface{}{"product_ref": "lot", "starting_bid": float64(1)}},
			wantErr: shared.ErrEndTimeRequired,
		},
		{
			name:    "create auction without starting bid",
			msg:     ClientMessage{Type: MessageTypeCreateAuction, Data: map[string]interface{}{"product_ref": "lot", "end_time": "x"}},
			wantErr: shared.ErrStartingBidRequired,
		},
		{
			name:    "unknown type",
			msg:     ClientMessage{Type: "teleport"},
			wantErr: shared.ErrUnknownMessageType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.msg.Validate(), tt.wantErr)
		})
	}

	valid := []ClientMessage{
		{Type: MessageTypeSubscribe, AuctionID: &auctionID},
		{Type: MessageTypeBuyNow, AuctionID: &auctionID},
		{Type: MessageTypePlaceBid, AuctionID: &auctionID, Data: map[string]interface{}{"amount": float64(500)}},
		{Type: MessageTypeListAuctions},
		{Type: MessageTypePing},
	}
	for _, msg := range valid {
		assert.NoError(t, msg.Validate(), string(msg.Type))
	}
}

func TestNewRejectionMessage(t *testing.T) {
	auctionID := uuid.New()

	msg := NewRejectionMessage(auctionID, &auction.Rejection{Kind: auction.RejectBidTooLow, MinRequired: 10500})
	assert.Equal(t, MessageTypeBidRejected, msg.Type)
	require.NotNil(t, msg.AuctionID)
	assert.Equal(t, auctionID, *msg.AuctionID)
	assert.Equal(t, "bid_too_low", msg.Data["reason"])
	assert.Equal(t, int64(10500), msg.Data["min_required"])

	// Other rejection kinds carry no minimum.
	msg = NewRejectionMessage(auctionID, &auction.Rejection{Kind: auction.RejectAuctionEnded})
	assert.Equal(t, "auction_ended", msg.Data["reason"])
	_, ok := msg.Data["min_required"]
	assert.False(t, ok)
}

func TestNewSnapshotMessage(t *testing.T) {
	auctionID := uuid.New()
	leader := uuid.New()
	buyNow := int64(50000)

	snap := &auction.Snapshot{
		AuctionID:         auctionID,
		ProductRef:        "lot-42",
		Status:            auction.StatusActive,
		StartingBid:       10000,
		MinBidIncrement:   500,
		BuyNowPrice:       &buyNow,
		CurrentHighestBid: 12000,
		CurrentLeaderID:   &leader,
		TotalBids:         2,
		TotalParticipants: 2,
		ReserveReached:    false,
		EndTime:           time.Now().Add(time.Hour),
		TimeRemaining:     time.Hour,
	}
	history := []*bid.Bid{
		{ID: uuid.New(), BidderID: leader, Amount: 12000, ServerSequence: 2, SubmittedAt: time.Now()},
		{ID: uuid.New(), BidderID: uuid.New(), Amount: 10000, ServerSequence: 1, SubmittedAt: time.Now()},
	}

	msg := NewSnapshotMessage(snap, history)
	assert.Equal(t, MessageTypeSnapshot, msg.Type)
	assert.Equal(t, "lot-42", msg.Data["product_ref"])
	assert.Equal(t, "active", msg.Data["status"])
	assert.Equal(t, int64(12000), msg.Data["current_highest_bid"])
	assert.Equal(t, leader.String(), msg.Data["current_leader_id"])
	assert.Equal(t, int64(50000), msg.Data["buy_now_price"])
	assert.Equal(t, time.Hour.Milliseconds(), msg.Data["time_remaining_ms"])

	recent, ok := msg.Data["recent_bids"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, recent, 2)
	assert.Equal(t, uint64(2), recent[0]["server_sequence"])

	_, ok = msg.Data["winner_id"]
	assert.False(t, ok, "no winner while active")
}
