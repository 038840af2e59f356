package bid

import (
	"sync"

	"github.com/google/uuid"
)

// Ledger is the append-only record of accepted bids for one auction. Appends
// happen under the auction's serialization guard; reads may come from any
// goroutine, so the leader pointer is updated atomically with the append
// under the ledger's own lock.
//
// The zero sequence is never assigned; sequences start at 1 and increase
// strictly across the auction's whole history.
type Ledger struct {
	mu      sync.RWMutex
	entries []*Bid
	nextSeq uint64
	leader  *Bid
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{nextSeq: 1}
}

// Append stamps the bid with the next server sequence and records it. The
// cached leader moves in the same critical section so no reader can observe
// a bid without its leadership effect.
func (l *Ledger) Append(b *Bid) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b.ServerSequence = l.nextSeq
	l.nextSeq++
	l.entries = append(l.entries, b)
	if b.Beats(l.leader) {
		l.leader = b
	}
}

// Restore rebuilds the ledger from bids already stamped with their durable
// server sequences, given in chronological order. Stored sequences are kept
// as-is and the next append continues past the highest of them, so gaps left
// by rolled-back acceptances are never refilled.
func (l *Ledger) Restore(bids []*Bid) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make([]*Bid, 0, len(bids))
	l.leader = nil
	l.nextSeq = 1
	for _, b := range bids {
		l.entries = append(l.entries, b)
		if b.Beats(l.leader) {
			l.leader = b
		}
		if b.ServerSequence >= l.nextSeq {
			l.nextSeq = b.ServerSequence + 1
		}
	}
}

// RemoveLast undoes the most recent append. Used only to roll back an
// acceptance whose persistence failed; the sequence is not reused so the
// history stays strictly increasing even across rollbacks.
func (l *Ledger) RemoveLast() *Bid {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return nil
	}
	last := l.entries[len(l.entries)-1]
	l.entries = l.entries[:len(l.entries)-1]
	if l.leader == last {
		l.leader = nil
		for _, b := range l.entries {
			if b.Beats(l.leader) {
				l.leader = b
			}
		}
	}
	return last
}

// Len returns the number of accepted bids
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// CurrentHighestBid returns the leading amount, or 0 with no bids
func (l *Ledger) CurrentHighestBid() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.leader == nil {
		return 0
	}
	return l.leader.Amount
}

// CurrentLeaderID returns the leading bidder, or nil with no bids
func (l *Ledger) CurrentLeaderID() *uuid.UUID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.leader == nil {
		return nil
	}
	id := l.leader.BidderID
	return &id
}

// Leader returns the leading bid itself, or nil with no bids
func (l *Ledger) Leader() *Bid {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.leader
}

// History returns a new reverse-chronological iterator over the committed
// bids. Each call produces an independent iterator positioned at the most
// recent bid; bids appended after the call are not visible to it.
func (l *Ledger) History() *HistoryIterator {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snapshot := make([]*Bid, len(l.entries))
	copy(snapshot, l.entries)
	return &HistoryIterator{entries: snapshot, pos: len(snapshot) - 1}
}

// HistoryIterator walks accepted bids newest-first
type HistoryIterator struct {
	entries []*Bid
	pos     int
}

// Next returns the next bid in reverse-chronological order, or nil when the
// history is exhausted.
func (it *HistoryIterator) Next() *Bid {
	if it.pos < 0 {
		return nil
	}
	b := it.entries[it.pos]
	it.pos--
	return b
}
