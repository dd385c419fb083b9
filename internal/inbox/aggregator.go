package inbox

import (
	"sort"
	"sync"

	"github.com/fathima-sithara/inbox-service/internal/models"
)

// conversation is the running fold state for one partner.
type conversation struct {
	partnerID string
	order     int // first-seen rank, breaks timestamp ties

	lastContent string
	lastTS      int64 // unix millis of the latest folded message
	lastSet     bool

	seen   map[string]bool     // every folded message id
	unread map[string]struct{} // inbound, not-viewed message ids
}

// Aggregator folds messages into per-partner conversation summaries.
// Ingest is idempotent per message id, so redelivered batches from a
// reconnecting feed cannot double-count unread totals or move the
// last-message fields. Safe for one writer and any number of
// Snapshot readers.
type Aggregator struct {
	mu        sync.RWMutex
	userID    string
	convs     map[string]*conversation
	nextOrder int
}

func NewAggregator(userID string) *Aggregator {
	return &Aggregator{
		userID: userID,
		convs:  make(map[string]*conversation),
	}
}

// Ingest folds one message into the partner's summary.
//
// A message id seen before is a no-op, with one exception: an inbound
// message re-delivered with Viewed flipped to true clears it from the
// unread set. That re-delivery is the documented path for read
// receipts reaching the inbox.
func (a *Aggregator) Ingest(partnerID string, msg models.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.convs[partnerID]
	if !ok {
		c = &conversation{
			partnerID: partnerID,
			order:     a.nextOrder,
			seen:      make(map[string]bool),
			unread:    make(map[string]struct{}),
		}
		a.nextOrder++
		a.convs[partnerID] = c
	}

	ts := msg.Timestamp.UnixMilli()

	if c.seen[msg.ID] {
		if msg.Viewed {
			delete(c.unread, msg.ID)
		}
		return
	}
	c.seen[msg.ID] = true

	if !c.lastSet || ts > c.lastTS {
		c.lastTS = ts
		c.lastContent = msg.Content
		c.lastSet = true
	}
	if msg.Inbound(a.userID) && !msg.Viewed {
		c.unread[msg.ID] = struct{}{}
	}
}

// Snapshot projects the current state into a fresh slice sorted by
// last-message timestamp descending; equal timestamps keep
// conversation first-seen order. Partner metadata is left nil here,
// the subscription joins it in from the resolver cache.
func (a *Aggregator) Snapshot() []models.ConversationSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.ConversationSummary, 0, len(a.convs))
	orders := make(map[string]int, len(a.convs))
	for _, c := range a.convs {
		orders[c.partnerID] = c.order
		out = append(out, models.ConversationSummary{
			PartnerID:            c.partnerID,
			LastMessageContent:   c.lastContent,
			LastMessageTimestamp: millisToTime(c.lastTS),
			UnreadCount:          len(c.unread),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].LastMessageTimestamp, out[j].LastMessageTimestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return orders[out[i].PartnerID] < orders[out[j].PartnerID]
	})
	return out
}

// Reset discards all fold state. Called on subscription teardown.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.convs = make(map[string]*conversation)
	a.nextOrder = 0
}
