package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"agrobid-auction-engine/internal/domain/auction"
	"agrobid-auction-engine/internal/domain/bid"
	"agrobid-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeSubscribe     MessageType = "subscribe"
	MessageTypeUnsubscribe   MessageType = "unsubscribe"
	MessageTypePlaceBid      MessageType = "place_bid"
	MessageTypeBuyNow        MessageType = "buy_now"
	MessageTypeCreateAuction MessageType = "create_auction"
	MessageTypeGetAuction    MessageType = "get_auction"
	MessageTypeListAuctions  MessageType = "list_auctions"
	MessageTypePing          MessageType = "ping"

	// Server to Client message types
	MessageTypeBidAccepted     MessageType = "bid_accepted"
	MessageTypeBidRejected     MessageType = "bid_rejected"
	MessageTypeAuctionExtended MessageType = "auction_extended"
	MessageTypeAuctionClosed   MessageType = "auction_closed"
	MessageTypeAuctionSettled  MessageType = "auction_settled"
	MessageTypeAuctionCreated  MessageType = "auction_created"
	MessageTypeSnapshot        MessageType = "auction_snapshot"
	MessageTypeAuctionList     MessageType = "auction_list"
	MessageTypeError           MessageType = "error"
	MessageTypePong            MessageType = "pong"
)

// ClientMessage represents a message sent from client to server
type ClientMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

func NewErrorMessage(err string, auctionID *uuid.UUID) *ServerMessage {
	return &ServerMessage{
		Type:      MessageTypeError,
		AuctionID: auctionID,
		Error:     &err,
		Timestamp: time.Now().Unix(),
	}
}

// NewRejectionMessage reports a refused bid, including the minimum amount
// that would have been accepted for too-low bids.
func NewRejectionMessage(auctionID uuid.UUID, rej *auction.Rejection) *ServerMessage {
	msg := NewServerMessage(MessageTypeBidRejected)
	msg.AuctionID = &auctionID
	msg.Data["reason"] = string(rej.Kind)
	if rej.Kind == auction.RejectBidTooLow {
		msg.Data["min_required"] = rej.MinRequired
	}
	return msg
}

// NewSnapshotMessage packs a full consistent view of the auction, sent on
// subscribe and reconnect instead of replaying missed events.
func NewSnapshotMessage(snap *auction.Snapshot, history []*bid.Bid) *ServerMessage {
	msg := NewServerMessage(MessageTypeSnapshot)
	msg.AuctionID = &snap.AuctionID
	msg.Data["product_ref"] = snap.ProductRef
	msg.Data["status"] = string(snap.Status)
	msg.Data["starting_bid"] = snap.StartingBid
	msg.Data["min_bid_increment"] = snap.MinBidIncrement
	msg.Data["current_highest_bid"] = snap.CurrentHighestBid
	msg.Data["total_bids"] = snap.TotalBids
	msg.Data["total_participants"] = snap.TotalParticipants
	msg.Data["reserve_reached"] = snap.ReserveReached
	msg.Data["end_time"] = snap.EndTime.Format(time.RFC3339)
	msg.Data["time_remaining_ms"] = snap.TimeRemaining.Milliseconds()
	if snap.BuyNowPrice != nil {
		msg.Data["buy_now_price"] = *snap.BuyNowPrice
	}
	if snap.CurrentLeaderID != nil {
		msg.Data["current_leader_id"] = snap.CurrentLeaderID.String()
	}
	if snap.WinnerID != nil {
		msg.Data["winner_id"] = snap.WinnerID.String()
	}

	recent := make([]map[string]interface{}, 0, len(history))
	for _, b := range history {
		recent = append(recent, map[string]interface{}{
			"bid_id":          b.ID.String(),
			"bidder_id":       b.BidderID.String(),
			"amount":          b.Amount,
			"server_sequence": b.ServerSequence,
			"submitted_at":    b.SubmittedAt.Format(time.RFC3339),
		})
	}
	msg.Data["recent_bids"] = recent

	return msg
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

func (m *ClientMessage) validateAuctionID() error {
	if m.AuctionID == nil || *m.AuctionID == uuid.Nil {
		return shared.ErrAuctionIDRequired
	}
	return nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe, MessageTypeGetAuction, MessageTypeBuyNow:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
	case MessageTypePlaceBid:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
		amount, ok := m.Data["amount"].(float64)
		if !ok || amount <= 0 {
			return shared.ErrInvalidAmount
		}
	case MessageTypeCreateAuction:
		if m.Data["product_ref"] == nil {
			return shared.ErrProductRefRequired
		}
		if m.Data["end_time"] == nil {
			return shared.ErrEndTimeRequired
		}
		if m.Data["starting_bid"] == nil {
			return shared.ErrStartingBidRequired
		}
	case MessageTypeListAuctions:

	case MessageTypePing:

	default:
		return shared.ErrUnknownMessageType
	}

	return nil
}
