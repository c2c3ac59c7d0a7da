package mq

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"cropconnect/globals"
)

// Event types
const (
	OrderCreated     = "order.created"
	OrderStatus      = "order.status"
	OrderPaid        = "order.paid"
	BidPlaced        = "bid.placed"
	BidAccepted      = "bid.accepted"
	BidRejected      = "bid.rejected"
	BookingCreated   = "booking.created"
	BookingStatus    = "booking.status"
	BookingPaid      = "booking.paid"
	RatingReceived   = "rating.received"
	RequirementEnded = "requirement.closed"
)

// Event is a domain event addressed to a single user.
type Event struct {
	Type      string                 `json:"type"`
	UserID    string                 `json:"userId"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Emitter is what the services depend on to announce events.
type Emitter interface {
	Emit(ctx context.Context, evt Event)
}

type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) <-chan []byte
}

// Publisher emits events onto the broker's events channel.
type Publisher struct {
	broker Broker
}

func NewPublisher(b Broker) *Publisher {
	return &Publisher{broker: b}
}

// Emit never fails the caller; delivery errors are logged.
func (p *Publisher) Emit(ctx context.Context, evt Event) {
	if evt.UserID == "" {
		return
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("[mq] marshal %s: %v", evt.Type, err)
		return
	}
	if err := p.broker.Publish(context.WithoutCancel(ctx), globals.EventsChannel, data); err != nil {
		log.Printf("[mq] publish %s for %s: %v", evt.Type, evt.UserID, err)
	}
}

// Consume calls handle for every event until ctx is cancelled.
func Consume(ctx context.Context, b Broker, handle func(context.Context, Event)) {
	log.Println("[mq] listening for events...")
	for payload := range b.Subscribe(ctx, globals.EventsChannel) {
		var evt Event
		if err := json.Unmarshal(payload, &evt); err != nil {
			log.Printf("[mq] bad event payload: %v", err)
			continue
		}
		handle(ctx, evt)
	}
	log.Println("[mq] event consumer stopped")
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, Event) {}
