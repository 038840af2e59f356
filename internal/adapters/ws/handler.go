package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"agrobid-auction-engine/internal/domain/auction"
	"agrobid-auction-engine/internal/domain/shared"
	"agrobid-auction-engine/internal/ports/inbound"
	"agrobid-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// snapshotHistoryLimit caps the bid history delivered with a snapshot
const snapshotHistoryLimit = 50

// WsHandler supervises WebSocket connections: it tracks per-client liveness,
// routes inbound messages to the engine, and forwards broadcast events. A
// client that reconnects gets a fresh snapshot on subscribe; no events are
// replayed.
type WsHandler struct {
	clients       map[string]*WsClient // clientID -> Client
	clientsMu     sync.RWMutex
	eventChannels map[string]chan outbound.Event // clientID -> local event channel
	channelsMu    sync.RWMutex
	upgrader      websocket.Upgrader
	engine        inbound.AuctionEngine
	broadcaster   outbound.Broadcaster
	logger        zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader    websocket.Upgrader
	Engine      inbound.AuctionEngine
	Broadcaster outbound.Broadcaster
	Logger      zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:       make(map[string]*WsClient),
		eventChannels: make(map[string]chan outbound.Event),
		upgrader:      params.Upgrader,
		engine:        params.Engine,
		broadcaster:   params.Broadcaster,
		logger:        params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket handles WebSocket connection upgrades. The user_id query
// parameter is the trusted bidder identity supplied by the gateway.
func (h *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user_id format", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		UserID:  userID,
		Conn:    conn,
		Handler: h,
		Logger:  h.logger,
	})

	h.registerClient(client)
	h.createEventChannel(client.id)

	client.Start()

	go h.listenForClientEvents(client)

	go func() {
		<-client.ctx.Done()
		h.unregisterClient(client)
	}()

	h.logger.Info().Str("client_id", client.id).Str("user_id", client.userID.String()).Msg("WebSocket client connected")
}

func (h *WsHandler) createEventChannel(clientID string) chan outbound.Event {
	h.channelsMu.Lock()
	defer h.channelsMu.Unlock()

	if eventChan, exists := h.eventChannels[clientID]; exists {
		return eventChan
	}

	eventChan := make(chan outbound.Event, 100)
	h.eventChannels[clientID] = eventChan
	return eventChan
}

func (h *WsHandler) getEventChannel(clientID string) chan outbound.Event {
	h.channelsMu.RLock()
	defer h.channelsMu.RUnlock()

	return h.eventChannels[clientID]
}

func (h *WsHandler) removeEventChannel(clientID string) {
	h.channelsMu.Lock()
	defer h.channelsMu.Unlock()

	if eventChan, exists := h.eventChannels[clientID]; exists {
		close(eventChan)
		delete(h.eventChannels, clientID)
	}
}

func (h *WsHandler) registerClient(client *WsClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	h.clients[client.id] = client
}

// unregisterClient marks the client's live connection as lost. Their
// standing bids are untouched; only event delivery stops.
func (h *WsHandler) unregisterClient(client *WsClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	delete(h.clients, client.id)
	client.Stop()
	h.removeEventChannel(client.id)

	h.logger.Info().
		Str("client_id", client.id).
		Str("user_id", client.userID.String()).
		Int("total_clients", len(h.clients)).
		Msg("WebSocket client disconnected")
}

// listenForClientEvents forwards broadcast events to the client socket
func (h *WsHandler) listenForClientEvents(client *WsClient) {
	eventChan := h.getEventChannel(client.id)
	if eventChan == nil {
		h.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return
	}

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := client.Send(h.convertEventToMessage(event)); err != nil {
				h.logger.Error().Err(err).Str("client_id", client.id).Msg("Failed to send event to WebSocket client")
			}

		case <-client.ctx.Done():
			return
		}
	}
}

func (h *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeSubscribe:
		return h.handleSubscribe(client, msg)

	case MessageTypeUnsubscribe:
		return h.handleUnsubscribe(client, msg)

	case MessageTypePlaceBid:
		return h.handlePlaceBid(client, msg)

	case MessageTypeBuyNow:
		return h.handleBuyNow(client, msg)

	case MessageTypeCreateAuction:
		return h.handleCreateAuction(client, msg)

	case MessageTypeGetAuction:
		return h.handleGetAuction(client, msg)

	case MessageTypeListAuctions:
		return h.handleListAuctions(client, msg)

	default:
		h.logger.Warn().Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

func (h *WsHandler) convertEventToMessage(event outbound.Event) *ServerMessage {
	msg := &ServerMessage{
		AuctionID: &event.AuctionID,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}

	switch event.Type {
	case outbound.EventTypeBidAccepted:
		msg.Type = MessageTypeBidAccepted
	case outbound.EventTypeAuctionExtended:
		msg.Type = MessageTypeAuctionExtended
	case outbound.EventTypeAuctionClosed:
		msg.Type = MessageTypeAuctionClosed
	case outbound.EventTypeAuctionSettled:
		msg.Type = MessageTypeAuctionSettled
	case outbound.EventTypeAuctionCreated:
		msg.Type = MessageTypeAuctionCreated
	default:
		msg.Type = MessageTypeError
	}

	return msg
}

// GetConnectedClients returns the number of connected clients
func (h *WsHandler) GetConnectedClients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// handleSubscribe attaches the client to an auction's event stream and
// replies with a full snapshot, so reconnecting clients never depend on
// missed events.
func (h *WsHandler) handleSubscribe(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	eventChan := h.getEventChannel(client.id)
	if eventChan == nil {
		return shared.ErrClientEventChannelNotFound
	}

	if err := h.broadcaster.Subscribe(ctx, *msg.AuctionID, client.id, eventChan); err != nil {
		h.logger.Error().Err(err).Str("client_id", client.id).Str("auction_id", msg.AuctionID.String()).Msg("Failed to subscribe to auction")
		return err
	}

	// One engine call so the counters and the history describe the same
	// moment even while bids land.
	snap, history, err := h.engine.GetAuctionView(ctx, *msg.AuctionID, snapshotHistoryLimit)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	h.logger.Info().Str("client_id", client.id).Str("auction_id", msg.AuctionID.String()).Msg("Client subscribed to auction")
	return client.Send(NewSnapshotMessage(snap, history))
}

func (h *WsHandler) handleUnsubscribe(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	if err := h.broadcaster.Unsubscribe(ctx, *msg.AuctionID, client.id); err != nil {
		return err
	}

	response := NewServerMessage(MessageTypeSnapshot)
	response.AuctionID = msg.AuctionID
	response.Data["status"] = "unsubscribed"

	h.logger.Info().Str("client_id", client.id).Str("auction_id", msg.AuctionID.String()).Msg("Client unsubscribed from auction")
	return client.Send(response)
}

func (h *WsHandler) handlePlaceBid(client *WsClient, msg *ClientMessage) error {
	amount, ok := msg.Data["amount"].(float64)
	if !ok {
		return shared.ErrInvalidAmount
	}

	ctx := context.Background()

	accepted, err := h.engine.SubmitBid(ctx, inbound.SubmitBidRequest{
		AuctionID: *msg.AuctionID,
		BidderID:  client.userID,
		Amount:    int64(amount),
	})
	if err != nil {
		var rej *auction.Rejection
		if errors.As(err, &rej) {
			return client.Send(NewRejectionMessage(*msg.AuctionID, rej))
		}
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	h.logger.Info().
		Str("bid_id", accepted.ID.String()).
		Str("auction_id", msg.AuctionID.String()).
		Str("user_id", client.userID.String()).
		Int64("amount", accepted.Amount).
		Msg("Bid placed")

	return nil
}

func (h *WsHandler) handleBuyNow(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	settlement, err := h.engine.BuyNow(ctx, inbound.BuyNowRequest{
		AuctionID: *msg.AuctionID,
		BidderID:  client.userID,
	})
	if err != nil {
		var rej *auction.Rejection
		if errors.As(err, &rej) {
			return client.Send(NewRejectionMessage(*msg.AuctionID, rej))
		}
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	h.logger.Info().
		Str("auction_id", msg.AuctionID.String()).
		Str("user_id", client.userID.String()).
		Msg("Auction bought outright")

	response := NewServerMessage(MessageTypeAuctionSettled)
	response.AuctionID = msg.AuctionID
	response.Data["winner_id"] = settlement.WinnerID.String()
	response.Data["final_price"] = *settlement.FinalPrice
	response.Data["buy_now"] = true
	return client.Send(response)
}

func (h *WsHandler) handleCreateAuction(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	req, err := buildCreateRequest(client.userID, msg.Data)
	if err != nil {
		return err
	}

	created, err := h.engine.CreateAuction(ctx, req)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), nil))
	}

	response := NewServerMessage(MessageTypeAuctionCreated)
	response.AuctionID = &created.ID
	response.Data["product_ref"] = created.ProductRef
	response.Data["starting_bid"] = created.StartingBid
	response.Data["min_bid_increment"] = created.MinBidIncrement
	response.Data["start_time"] = created.StartTime.Format(time.RFC3339)
	response.Data["end_time"] = created.EndTime.Format(time.RFC3339)
	response.Data["status"] = string(created.Status)

	h.logger.Info().Str("auction_id", created.ID.String()).Str("user_id", client.userID.String()).Msg("Auction created")
	return client.Send(response)
}

func (h *WsHandler) handleGetAuction(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	snap, history, err := h.engine.GetAuctionView(ctx, *msg.AuctionID, snapshotHistoryLimit)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	return client.Send(NewSnapshotMessage(snap, history))
}

func (h *WsHandler) handleListAuctions(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	limit := 10
	if limitVal, ok := msg.Data["limit"].(float64); ok && limitVal > 0 {
		limit = int(limitVal)
	}

	offset := 0
	if offsetVal, ok := msg.Data["offset"].(float64); ok {
		offset = int(offsetVal)
	}

	var status *auction.Status
	if statusVal, ok := msg.Data["status"].(string); ok && statusVal != "" {
		s := auction.Status(statusVal)
		status = &s
	}

	auctions, err := h.engine.ListAuctions(ctx, inbound.ListAuctionsRequest{
		Page:     offset/limit + 1,
		PageSize: limit,
		Status:   status,
	})
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), nil))
	}

	response := NewServerMessage(MessageTypeAuctionList)
	response.Data["auctions"] = auctions
	response.Data["count"] = len(auctions)

	return client.Send(response)
}

// buildCreateRequest maps loose message data onto a typed create request
func buildCreateRequest(sellerID uuid.UUID, data map[string]interface{}) (inbound.CreateAuctionRequest, error) {
	req := inbound.CreateAuctionRequest{SellerID: sellerID}

	productRef, ok := data["product_ref"].(string)
	if !ok {
		return req, shared.ErrProductRefRequired
	}
	req.ProductRef = productRef

	startingBid, ok := data["starting_bid"].(float64)
	if !ok {
		return req, shared.ErrStartingBidRequired
	}
	req.StartingBid = int64(startingBid)

	endTime, ok := data["end_time"].(string)
	if !ok {
		return req, shared.ErrEndTimeRequired
	}
	req.EndTime = endTime

	if startTime, ok := data["start_time"].(string); ok {
		req.StartTime = startTime
	} else {
		req.StartTime = time.Now().UTC().Format(time.RFC3339)
	}

	if reserve, ok := data["reserve_price"].(float64); ok {
		req.ReservePrice = int64(reserve)
	}
	if increment, ok := data["min_bid_increment"].(float64); ok {
		req.MinBidIncrement = int64(increment)
	}
	if buyNow, ok := data["buy_now_price"].(float64); ok {
		price := int64(buyNow)
		req.BuyNowPrice = &price
	}
	if window, ok := data["extension_window"].(string); ok {
		req.ExtensionWindow = window
	}
	if maxExt, ok := data["max_extensions"].(float64); ok {
		n := int(maxExt)
		req.MaxExtensions = &n
	}

	return req, nil
}
