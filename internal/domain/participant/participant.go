package participant

import (
	"sync"

	"github.com/google/uuid"
)

// Participant aggregates one bidder's standing within a single auction.
// Derived incrementally from the accepted-bid stream; IsWinner is set only
// at settlement.
type Participant struct {
	AuctionID        uuid.UUID `json:"auction_id"`
	UserID           uuid.UUID `json:"user_id"`
	BidCount         int       `json:"bid_count"`
	HighestBidAmount int64     `json:"highest_bid_amount"`
	IsWinner         bool      `json:"is_winner"`
}

// Registry maintains the participants of one auction. Mutations happen under
// the auction's serialization guard; the registry's own lock covers
// concurrent snapshot reads.
type Registry struct {
	mu        sync.RWMutex
	auctionID uuid.UUID
	entries   map[uuid.UUID]*Participant
	order     []uuid.UUID
}

// NewRegistry creates an empty registry for an auction
func NewRegistry(auctionID uuid.UUID) *Registry {
	return &Registry{
		auctionID: auctionID,
		entries:   make(map[uuid.UUID]*Participant),
	}
}

// RecordBid upserts the bidder's aggregate for an accepted bid. Returns true
// if this is the bidder's first bid in the auction.
func (r *Registry) RecordBid(userID uuid.UUID, amount int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.entries[userID]
	if !ok {
		r.entries[userID] = &Participant{
			AuctionID:        r.auctionID,
			UserID:           userID,
			BidCount:         1,
			HighestBidAmount: amount,
		}
		r.order = append(r.order, userID)
		return true
	}
	p.BidCount++
	if amount > p.HighestBidAmount {
		p.HighestBidAmount = amount
	}
	return false
}

// MarkWinner flags the winning bidder at settlement; everyone else stays
// unflagged.
func (r *Registry) MarkWinner(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.entries[userID]; ok {
		p.IsWinner = true
	}
}

// Get returns a copy of the bidder's aggregate
func (r *Registry) Get(userID uuid.UUID) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.entries[userID]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Count returns the number of distinct bidders
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// List returns participant copies in first-bid order
func (r *Registry) List() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id])
	}
	return out
}

// Snapshot returns a copy of the bidder's entry for rollback, or nil if the
// bidder has no entry yet.
func (r *Registry) Snapshot(userID uuid.UUID) *Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.entries[userID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// Restore reverts the bidder's entry to a prior snapshot. A nil snapshot
// removes the entry entirely (the bidder had not bid before the rolled-back
// acceptance).
func (r *Registry) Restore(userID uuid.UUID, snap *Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snap == nil {
		if _, ok := r.entries[userID]; ok {
			delete(r.entries, userID)
			for i, id := range r.order {
				if id == userID {
					r.order = append(r.order[:i], r.order[i+1:]...)
					break
				}
			}
		}
		return
	}
	cp := *snap
	r.entries[userID] = &cp
}
