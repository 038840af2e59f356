package shared

import "errors"

// Domain-specific errors
var (
	// Auction errors
	ErrAuctionNotFound    = errors.New("auction not found")
	ErrAuctionNotActive   = errors.New("auction is not active")
	ErrAuctionEnded       = errors.New("auction has ended")
	ErrAuctionNotClosed   = errors.New("auction is not closed")
	ErrAuctionSettled     = errors.New("auction already settled")
	ErrInvalidEndTime     = errors.New("end time must be after start time")
	ErrInvalidStartingBid = errors.New("starting bid must be greater than 0")
	ErrInvalidIncrement   = errors.New("minimum bid increment must be greater than 0")
	ErrInvalidBuyNowPrice = errors.New("buy-now price must be at least the starting bid")
	ErrBuyNowUnavailable  = errors.New("auction has no buy-now price")
	ErrInvalidTimeFormat  = errors.New("invalid time format")

	// Bid errors
	ErrBidAmountInvalid = errors.New("bid amount must be greater than 0")
	ErrBidTooLow        = errors.New("bid amount below minimum acceptable bid")
	ErrNoBidsFound      = errors.New("no bids found")

	// Participant errors
	ErrParticipantNotFound = errors.New("participant not found")

	// Storage errors
	ErrDatabaseConnection = errors.New("database connection failed")
	ErrStorageUnavailable = errors.New("bid storage unavailable")

	// WebSocket message validation errors
	ErrMessageTypeRequired    = errors.New("message type is required")
	ErrAuctionIDRequired      = errors.New("auction_id is required")
	ErrInvalidAmount          = errors.New("valid amount is required")
	ErrProductRefRequired     = errors.New("product_ref is required")
	ErrEndTimeRequired        = errors.New("end_time is required")
	ErrStartingBidRequired    = errors.New("starting_bid is required")
	ErrUnknownMessageType     = errors.New("unknown message type")
	ErrInvalidAuctionIDFormat = errors.New("invalid auction_id format")

	// Broadcasting errors
	ErrBroadcastFailed = errors.New("broadcast failed")

	// WebSocket handler specific errors
	ErrClientEventChannelNotFound = errors.New("client event channel not found")
)
