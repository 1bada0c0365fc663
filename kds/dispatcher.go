package kds

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-orders/metrics"
	"github.com/yeremiapane/restaurant-orders/utils"
)

// ErrDeliveryFailed wraps the transport error of an evicted connection.
var ErrDeliveryFailed = errors.New("kds: delivery failed")

// Outcome is what happened to one connection during a broadcast.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeEvicted   Outcome = "evicted"
)

// Delivery is the result of sending one event to one connection.
type Delivery struct {
	ClientID string
	Outcome  Outcome
	Err      error
}

// BroadcastResult collects every Delivery of one Broadcast call.
type BroadcastResult struct {
	Kind       EventKind
	Audience   Audience
	Deliveries []Delivery
	Delivered  int
	Evicted    int
}

// Dispatcher fans events out to the registry's connections.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Broadcast sends ev to every connection of its audience concurrently and
// returns after every attempt has finished. Connections whose send fails are
// evicted and closed. No error crosses this boundary.
func (d *Dispatcher) Broadcast(ev Event) BroadcastResult {
	res := BroadcastResult{Kind: ev.Kind, Audience: ev.Kind.Audience()}
	metrics.BroadcastsTotal.WithLabelValues(string(ev.Kind)).Inc()

	targets := d.registry.Enumerate(res.Audience)
	if len(targets) == 0 {
		utils.InfoLogger.WithFields(logrus.Fields{
			"event":    ev.Kind,
			"audience": res.Audience,
		}).Debug("broadcast has no recipients")
		return res
	}

	data, err := ev.Encode()
	if err != nil {
		utils.ErrorLogger.WithField("event", ev.Kind).Errorf("dropping broadcast: %v", err)
		return res
	}

	res.Deliveries = make([]Delivery, len(targets))
	var wg sync.WaitGroup
	for i, c := range targets {
		wg.Add(1)
		go func(i int, c Client) {
			defer wg.Done()
			res.Deliveries[i] = d.deliver(c, data)
		}(i, c)
	}
	wg.Wait()

	for _, dl := range res.Deliveries {
		switch dl.Outcome {
		case OutcomeDelivered:
			res.Delivered++
		case OutcomeEvicted:
			res.Evicted++
		}
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"event":     ev.Kind,
		"audience":  res.Audience,
		"delivered": res.Delivered,
		"evicted":   res.Evicted,
	}).Info("broadcast complete")
	return res
}

func (d *Dispatcher) deliver(c Client, data []byte) Delivery {
	id := c.ID()
	if err := c.Send(data); err != nil {
		d.registry.Evict(id)
		_ = c.Close()
		metrics.DeliveriesTotal.WithLabelValues(string(OutcomeEvicted)).Inc()
		utils.InfoLogger.WithFields(logrus.Fields{
			"conn_id": id,
			"error":   err,
		}).Warn("evicting connection after failed send")
		return Delivery{ClientID: id, Outcome: OutcomeEvicted, Err: fmt.Errorf("%w: %v", ErrDeliveryFailed, err)}
	}
	metrics.DeliveriesTotal.WithLabelValues(string(OutcomeDelivered)).Inc()
	return Delivery{ClientID: id, Outcome: OutcomeDelivered}
}
