package kds

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKind_Audience(t *testing.T) {
	assert.Equal(t, AudienceAll, EventOrderCreated.Audience())
	assert.Equal(t, AudienceAll, EventOrderUpdated.Audience())
	assert.Equal(t, AudienceAdmin, EventWaiterCall.Audience())
	assert.Equal(t, AudienceAdmin, EventBillRequest.Audience())
}

func TestEvent_EncodeFlattensPayload(t *testing.T) {
	ev := NewOrderUpdatedEvent(OrderUpdatedPayload{ID: 7, Status: "ready", TableName: "Table 3"})
	data, err := ev.Encode()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "order_updated", got["type"])
	assert.Equal(t, float64(7), got["id"])
	assert.Equal(t, "ready", got["status"])
	assert.Equal(t, "Table 3", got["table_name"])
	assert.NotContains(t, got, "items")
}

func TestEvent_EncodeRejectsNonObject(t *testing.T) {
	_, err := Event{Kind: EventWaiterCall, Payload: []int{1, 2}}.Encode()
	assert.Error(t, err)

	data, err := Event{Kind: EventWaiterCall}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"waiter_call"}`, string(data))
}

func TestNewOrderCreatedEvent_DetachesItems(t *testing.T) {
	extras := json.RawMessage(`{"size":"large"}`)
	items := []OrderItemSnapshot{{ProductName: "Soup", Quantity: 2, Subtotal: 10, Extras: extras}}
	ev := NewOrderCreatedEvent(OrderCreatedPayload{ID: 1, Items: items, CreatedAt: time.Unix(0, 0).UTC()})

	items[0].ProductName = "Changed"
	extras[2] = 'X'

	p := ev.Payload.(OrderCreatedPayload)
	assert.Equal(t, "Soup", p.Items[0].ProductName)
	assert.JSONEq(t, `{"size":"large"}`, string(p.Items[0].Extras))
}

func TestDispatcher_OneFailingSendEvictsOnlyThatClient(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r)

	var healthy []*fakeClient
	for i := 0; i < 4; i++ {
		c := newFakeClient(fmt.Sprintf("ok-%d", i))
		healthy = append(healthy, c)
		r.Register(c, []Role{RoleCustomer, RoleKitchen, RoleAdmin}[i%3])
	}
	broken := newFakeClient("broken")
	broken.sendErr = errBrokenPipe
	r.Register(broken, RoleKitchen)

	res := d.Broadcast(NewOrderUpdatedEvent(OrderUpdatedPayload{ID: 1, Status: "ready"}))

	assert.Equal(t, 4, res.Delivered)
	assert.Equal(t, 1, res.Evicted)
	assert.Len(t, res.Deliveries, 5)
	for _, dl := range res.Deliveries {
		if dl.ClientID == "broken" {
			assert.Equal(t, OutcomeEvicted, dl.Outcome)
			assert.ErrorIs(t, dl.Err, ErrDeliveryFailed)
		} else {
			assert.Equal(t, OutcomeDelivered, dl.Outcome)
			assert.NoError(t, dl.Err)
		}
	}

	assert.Equal(t, 4, r.Count(AudienceAll))
	assert.False(t, contains(r.Enumerate(AudienceKitchen), "broken"))
	assert.Equal(t, 1, broken.Closes())
	for _, c := range healthy {
		require.Len(t, c.Sent(), 1)
		assert.JSONEq(t, `{"type":"order_updated","id":1,"status":"ready","table_name":""}`, string(c.Sent()[0]))
		assert.Equal(t, 0, c.Closes())
	}
}

func TestDispatcher_AdminAudience(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r)
	customer := newFakeClient("c")
	kitchen := newFakeClient("k")
	admin := newFakeClient("a")
	r.Register(customer, RoleCustomer)
	r.Register(kitchen, RoleKitchen)
	r.Register(admin, RoleAdmin)

	res := d.Broadcast(NewTableCallEvent(EventBillRequest, TableCallPayload{TableID: 2, TableName: "T2", Message: "Table T2 requests the bill", Timestamp: "12:30"}))

	assert.Equal(t, AudienceAdmin, res.Audience)
	assert.Equal(t, 1, res.Delivered)
	assert.Empty(t, customer.Sent())
	assert.Empty(t, kitchen.Sent())
	require.Len(t, admin.Sent(), 1)
	assert.Contains(t, string(admin.Sent()[0]), `"type":"bill_request"`)
}

func TestDispatcher_NoRecipients(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeClient("c"), RoleCustomer)

	res := NewDispatcher(r).Broadcast(NewTableCallEvent(EventWaiterCall, TableCallPayload{TableID: 1}))
	assert.Equal(t, 0, res.Delivered)
	assert.Equal(t, 0, res.Evicted)
	assert.Empty(t, res.Deliveries)
}

func TestDispatcher_EncodeFailureDeliversNothing(t *testing.T) {
	r := NewRegistry()
	c := newFakeClient("c")
	r.Register(c, RoleCustomer)

	res := NewDispatcher(r).Broadcast(Event{Kind: EventOrderCreated, Payload: "not an object"})
	assert.Equal(t, 0, res.Delivered)
	assert.Empty(t, c.Sent())
	assert.Equal(t, 1, r.Count(AudienceAll))
}

func TestHub_BroadcastUsesSharedRegistry(t *testing.T) {
	h := NewHub(nil)
	c := newFakeClient("c")
	h.Registry.Register(c, RoleKitchen)

	res := h.Broadcast(NewOrderUpdatedEvent(OrderUpdatedPayload{ID: 3, Status: "preparing"}))
	assert.Equal(t, 1, res.Delivered)
	require.Len(t, c.Sent(), 1)
}
