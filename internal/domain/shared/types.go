package shared

import "github.com/google/uuid"

// Settlement represents the final outcome of an auction
type Settlement struct {
	AuctionID      uuid.UUID
	WinnerID       *uuid.UUID
	FinalPrice     *int64
	ReserveReached bool
	Status         string
}
