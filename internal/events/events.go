// ABOUTME: Event types published to the monitoring dashboard
// ABOUTME: Covers queue membership changes and message traffic notifications

package events

import "time"

// Event names streamed to dashboard subscribers.
const (
	QueueJoin        = "queue:join"
	QueueLeave       = "queue:leave"
	MessageForward   = "message:forward"
	MessageAttendant = "message:attendant"
	MessageAdmin     = "message:admin"
)

// Leave reasons carried on QueueLeave events.
const (
	ReasonClaimed   = "claimed"
	ReasonCancelled = "cancelled"
	ReasonTimeout   = "timeout"
	ReasonRemoved   = "removed"
)

// Event is one dashboard notification. Payload keys vary by Name.
type Event struct {
	Name      string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"data,omitempty"`
}

// New builds an event stamped with now.
func New(name string, payload map[string]any) Event {
	return Event{
		Name:      name,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewQueueJoin announces a user entering the waiting queue.
func NewQueueJoin(userID, name string, position int) Event {
	return New(QueueJoin, map[string]any{
		"chatId":   userID,
		"name":     name,
		"position": position,
	})
}

// NewQueueLeave announces a user leaving the queue for the given reason.
func NewQueueLeave(userID, reason string) Event {
	return New(QueueLeave, map[string]any{
		"chatId": userID,
		"reason": reason,
	})
}

// NewMessageForward announces a user message relayed to the operators group.
func NewMessageForward(userID, text string) Event {
	return New(MessageForward, map[string]any{
		"chatId": userID,
		"text":   text,
	})
}
