package bridge

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"whatstasker/internal/core/ports"
)

// OutboundMessage is one queued reply awaiting pickup by the chat bridge.
type OutboundMessage struct {
	ID       string    `json:"id"`
	ChatID   string    `json:"chat_id"`
	Body     string    `json:"body"`
	QueuedAt time.Time `json:"queued_at"`
}

// Queue buffers outbound messages until the bridge process acknowledges
// delivery. Pending never clears on read; only Ack removes entries, so a
// bridge crash between fetch and send cannot lose messages.
type Queue struct {
	mu       sync.Mutex
	pending  []OutboundMessage
	capacity int
}

var _ ports.Transport = (*Queue)(nil)

const defaultCapacity = 1000

func NewQueue() *Queue {
	return &Queue{capacity: defaultCapacity}
}

// Send queues a message for the owner and returns its id. When the queue
// is full the oldest entry is dropped.
func (q *Queue) Send(owner, message string) string {
	msg := OutboundMessage{
		ID:       uuid.NewString(),
		ChatID:   NormalizeChatID(owner),
		Body:     message,
		QueuedAt: time.Now().UTC(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) >= q.capacity {
		zap.L().Warn("outbound queue full, dropping oldest",
			zap.String("dropped_id", q.pending[0].ID))
		q.pending = q.pending[1:]
	}
	q.pending = append(q.pending, msg)
	return msg.ID
}

// Pending returns a snapshot of queued messages, oldest first.
func (q *Queue) Pending() []OutboundMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]OutboundMessage, len(q.pending))
	copy(out, q.pending)
	return out
}

// Ack removes delivered messages and reports how many were found.
func (q *Queue) Ack(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	acked := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		acked[id] = struct{}{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.pending[:0]
	removed := 0
	for _, msg := range q.pending {
		if _, ok := acked[msg.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	q.pending = kept
	return removed
}

// NormalizeChatID maps a bare phone number to the chat id form the
// bridge expects. Ids that already carry a domain suffix pass through.
func NormalizeChatID(owner string) string {
	if strings.Contains(owner, "@") {
		return owner
	}
	trimmed := strings.TrimPrefix(owner, "+")
	return trimmed + "@c.us"
}
