package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/services"
)

// PubSubOrderEventPublisher publishes order lifecycle events to a Pub/Sub
// topic. Live tracking pages and the staff dashboard subscribe to it.
type PubSubOrderEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderEventPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderEventPublisher(topic *pubsub.Topic) (*PubSubOrderEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order event publisher: topic is required")
	}
	return &PubSubOrderEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

var _ services.OrderEventPublisher = (*PubSubOrderEventPublisher)(nil)

// orderEventMessage is the wire form of an order lifecycle event.
type orderEventMessage struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	CurrentStatus  string    `json:"currentStatus"`
	Progress       int       `json:"progress"`
	ActorID        string    `json:"actorId,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// PublishOrderEvent enqueues the event on the configured topic.
func (p *PubSubOrderEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order event publisher: not initialised")
	}

	data, err := p.marshal(orderEventMessage{
		Type:           event.Type,
		OrderID:        event.OrderID,
		OrderNumber:    event.OrderNumber,
		PreviousStatus: event.PreviousStatus,
		CurrentStatus:  event.CurrentStatus,
		Progress:       event.Progress,
		ActorID:        event.ActorID,
		OccurredAt:     event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderNumber", event.OrderNumber)
	setAttr(attrs, "status", event.CurrentStatus)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// PubSubEmailDispatcher hands confirmation email jobs to the mailer worker
// through a Pub/Sub topic.
type PubSubEmailDispatcher struct {
	topic   *pubsub.Topic
	sender  string
	clock   func() time.Time
	marshal func(any) ([]byte, error)
}

// NewPubSubEmailDispatcher constructs a Pub/Sub backed email dispatcher. The
// sender address is stamped onto every job for the worker to use.
func NewPubSubEmailDispatcher(topic *pubsub.Topic, sender string) (*PubSubEmailDispatcher, error) {
	if topic == nil {
		return nil, errors.New("pubsub email dispatcher: topic is required")
	}
	if strings.TrimSpace(sender) == "" {
		return nil, errors.New("pubsub email dispatcher: sender address is required")
	}
	return &PubSubEmailDispatcher{
		topic:   topic,
		sender:  strings.TrimSpace(sender),
		clock:   time.Now,
		marshal: json.Marshal,
	}, nil
}

var _ services.EmailDispatcher = (*PubSubEmailDispatcher)(nil)

// confirmationLine is one order line in the confirmation email payload.
type confirmationLine struct {
	DishName  string `json:"dishName"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"lineTotal"`
}

// confirmationMessage is the wire form of a confirmation email job.
type confirmationMessage struct {
	OrderID       string             `json:"orderId"`
	OrderNumber   string             `json:"orderNumber"`
	Recipient     string             `json:"recipient"`
	RecipientName string             `json:"recipientName,omitempty"`
	Sender        string             `json:"sender"`
	DeliveryType  string             `json:"deliveryType"`
	OrderTotal    string             `json:"orderTotal"`
	DeliveryFee   string             `json:"deliveryFee"`
	GrandTotal    string             `json:"grandTotal"`
	Lines         []confirmationLine `json:"lines"`
	QueuedAt      time.Time          `json:"queuedAt"`
}

// DispatchOrderConfirmation enqueues a confirmation email job for the order.
func (d *PubSubEmailDispatcher) DispatchOrderConfirmation(ctx context.Context, order domain.Order) error {
	if d == nil || d.topic == nil {
		return errors.New("pubsub email dispatcher: not initialised")
	}
	recipient := strings.TrimSpace(order.Address.Email)
	if recipient == "" {
		return fmt.Errorf("order %s has no recipient email", order.Number)
	}

	msg := confirmationMessage{
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		Recipient:     recipient,
		RecipientName: order.Address.FullName,
		Sender:        d.sender,
		DeliveryType:  string(order.DeliveryType),
		OrderTotal:    order.OrderTotal.String(),
		DeliveryFee:   order.DeliveryFee.String(),
		GrandTotal:    order.GrandTotal.String(),
		QueuedAt:      d.clock().UTC(),
	}
	for _, line := range order.LineItems {
		msg.Lines = append(msg.Lines, confirmationLine{
			DishName:  line.DishName,
			Size:      string(line.Size),
			Quantity:  line.Quantity,
			LineTotal: line.LineTotal.String(),
		})
	}

	data, err := d.marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal confirmation email: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderNumber", order.Number)
	setAttr(attrs, "template", "order_confirmation")

	result := d.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish confirmation email: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
