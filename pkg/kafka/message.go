package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// IncomingMessage wraps a raw kafka message with its parsed payload.
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Purchase is nil until ParsePurchaseEvent succeeds.
	Purchase *PurchaseEvent
}

// PurchaseEvent carries the contact details attached to an order. Only the
// identifiers are used; anything else in the payload is ignored.
type PurchaseEvent struct {
	OrderID     string            `json:"orderId,omitempty"`
	Email       models.FlexString `json:"email"`
	PhoneNumber models.FlexString `json:"phoneNumber"`
}

// ParsePurchaseEvent decodes Value into Purchase.
func (m *IncomingMessage) ParsePurchaseEvent() error {
	var event PurchaseEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("decode purchase event at offset %d: %w", m.Offset, err)
	}
	m.Purchase = &event
	return nil
}
