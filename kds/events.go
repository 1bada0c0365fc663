package kds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EventKind is the "type" field of an outbound event frame.
type EventKind string

const (
	EventOrderCreated EventKind = "order_created"
	EventOrderUpdated EventKind = "order_updated"
	EventWaiterCall   EventKind = "waiter_call"
	EventBillRequest  EventKind = "bill_request"
)

// Audience returns the connections an event of kind k is delivered to.
func (k EventKind) Audience() Audience {
	switch k {
	case EventWaiterCall, EventBillRequest:
		return AudienceAdmin
	default:
		return AudienceAll
	}
}

// Event is an immutable broadcast message. Payload must marshal to a JSON
// object; its fields are flattened next to "type" in the envelope.
type Event struct {
	Kind    EventKind
	Payload interface{}
}

// Encode serializes the envelope {"type": kind, ...payload}.
func (e Event) Encode() ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if e.Payload != nil {
		body, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", e.Kind, err)
		}
		if !bytes.Equal(body, []byte("null")) {
			if err := json.Unmarshal(body, &fields); err != nil {
				return nil, fmt.Errorf("encode %s payload: not a JSON object: %w", e.Kind, err)
			}
		}
	}
	kind, err := json.Marshal(string(e.Kind))
	if err != nil {
		return nil, err
	}
	fields["type"] = kind
	return json.Marshal(fields)
}

// OrderItemSnapshot is one committed line of an order_created event.
type OrderItemSnapshot struct {
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Subtotal    float64         `json:"subtotal"`
	Extras      json.RawMessage `json:"extras"`
}

type OrderCreatedPayload struct {
	ID            uint                `json:"id"`
	TableID       uint                `json:"table_id"`
	TableName     string              `json:"table_name"`
	Status        string              `json:"status"`
	CustomerNotes string              `json:"customer_notes"`
	TotalAmount   float64             `json:"total_amount"`
	CreatedAt     time.Time           `json:"created_at"`
	Items         []OrderItemSnapshot `json:"items"`
}

// OrderUpdatedPayload carries no item detail.
type OrderUpdatedPayload struct {
	ID        uint   `json:"id"`
	Status    string `json:"status"`
	TableName string `json:"table_name"`
}

type TableCallPayload struct {
	TableID   uint   `json:"table_id"`
	TableName string `json:"table_name"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func NewOrderCreatedEvent(p OrderCreatedPayload) Event {
	items := make([]OrderItemSnapshot, len(p.Items))
	for i, it := range p.Items {
		it.Extras = append(json.RawMessage(nil), it.Extras...)
		items[i] = it
	}
	p.Items = items
	return Event{Kind: EventOrderCreated, Payload: p}
}

func NewOrderUpdatedEvent(p OrderUpdatedPayload) Event {
	return Event{Kind: EventOrderUpdated, Payload: p}
}

// NewTableCallEvent builds a waiter_call or bill_request event.
func NewTableCallEvent(kind EventKind, p TableCallPayload) Event {
	return Event{Kind: kind, Payload: p}
}
