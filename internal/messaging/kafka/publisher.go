// Package kafka publishes checkout events to Kafka.
package kafka

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/arell305/hostlyapp/internal/domain/checkout"
	"github.com/arell305/hostlyapp/internal/domain/pricing"
)

// EventOrderPlaced is the type header value of OrderPlaced records.
const EventOrderPlaced = "order.placed"

// Config holds producer settings.
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
}

var _ checkout.Publisher = (*Publisher)(nil)

// Publisher writes OrderPlaced records keyed by event id, so every order of
// an event lands in one partition in placement order.
type Publisher struct {
	client *kgo.Client
}

// NewPublisher creates a producer for cfg.Topic.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no brokers configured")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka client")
	}
	return &Publisher{client: client}, nil
}

// PublishOrderPlaced implements checkout.Publisher.
func (p *Publisher) PublishOrderPlaced(ctx context.Context, o *checkout.Order) error {
	rec := &kgo.Record{
		Key:   []byte(o.EventID),
		Value: EncodeOrderPlaced(o),
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(EventOrderPlaced)},
		},
		Timestamp: o.CreatedAt,
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return errors.Wrapf(err, "produce order %s", o.ID)
	}
	return nil
}

// Ping checks connectivity to the brokers.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Publisher) Close() {
	p.client.Close()
}

// EncodeOrderPlaced renders the OrderPlaced payload. Amounts are strings
// with two decimal places.
func EncodeOrderPlaced(o *checkout.Order) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("type")
	e.Str(EventOrderPlaced)
	e.FieldStart("order_id")
	e.Str(o.ID)
	e.FieldStart("event_id")
	e.Str(o.EventID)
	e.FieldStart("organization_id")
	e.Str(o.OrganizationID)
	e.FieldStart("email")
	e.Str(o.Email)
	e.FieldStart("quantity")
	e.Int(o.Quantity())
	e.FieldStart("total")
	e.Str(pricing.Display(o.Total))
	e.FieldStart("discount")
	e.Str(pricing.Display(o.Discount))
	if o.PromoCode != "" {
		e.FieldStart("promo_code")
		e.Str(o.PromoCode)
	}
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range o.Lines {
		e.ObjStart()
		e.FieldStart("ticket_type_id")
		e.Str(l.TicketTypeID)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unit_price")
		e.Str(pricing.Display(l.DiscountedUnitPrice))
		e.FieldStart("subtotal")
		e.Str(pricing.Display(l.Subtotal))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
	return e.Bytes()
}
