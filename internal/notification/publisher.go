package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/recantodasaguas/reservation-api/internal/model"
)

// queueName is the durable queue all reservation events are published to.
const queueName = "reservation.events"

// Publisher sends reservation events to RabbitMQ.  It implements the
// orchestrator's Notifier port.  Publishing is best-effort: errors are
// logged and returned so callers can ignore failures without interrupting
// the main request flow.  An empty URL disables publishing entirely.
type Publisher struct {
	url string
	now func() time.Time
}

// NewPublisher builds a Publisher for the given AMQP URL.  now may be nil.
func NewPublisher(url string, now func() time.Time) *Publisher {
	if now == nil {
		now = time.Now
	}
	return &Publisher{url: url, now: now}
}

// ReservationCreated publishes a created event, including the payment link
// when the checkout succeeded.
func (p *Publisher) ReservationCreated(ctx context.Context, res *model.Reservation, paymentLink string) error {
	ev := p.base(KindCreated, res)
	ev.PaymentLink = paymentLink
	return p.publish(ctx, ev)
}

// ReservationConfirmed publishes a confirmed event.
func (p *Publisher) ReservationConfirmed(ctx context.Context, res *model.Reservation) error {
	return p.publish(ctx, p.base(KindConfirmed, res))
}

// ReservationCanceled publishes a canceled event with the cancellation
// reason.
func (p *Publisher) ReservationCanceled(ctx context.Context, res *model.Reservation, reason string) error {
	ev := p.base(KindCanceled, res)
	ev.Reason = reason
	return p.publish(ctx, ev)
}

// PaymentStatusChanged publishes a payment status transition.
func (p *Publisher) PaymentStatusChanged(ctx context.Context, res *model.Reservation, status model.PaymentStatus, paymentLink string) error {
	ev := p.base(KindPaymentStatus, res)
	ev.PaymentStatus = string(status)
	ev.PaymentLink = paymentLink
	return p.publish(ctx, ev)
}

func (p *Publisher) base(kind string, res *model.Reservation) ReservationEvent {
	return ReservationEvent{
		Event:           kind,
		Code:            res.Code,
		Type:            string(res.Type),
		Status:          string(res.Status),
		StartDate:       res.StartDate.Format("2006-01-02"),
		EndDate:         res.EndDate.Format("2006-01-02"),
		Guests:          res.Guests,
		Cabins:          res.Cabins,
		TotalPriceCents: res.TotalPriceCents,
		GuestName:       res.GuestName,
		GuestEmail:      res.GuestEmail,
		OccurredAt:      p.now().UTC().Format(time.RFC3339),
	}
}

// publish declares the durable queue (idempotent) and sends one persistent
// message.  The function attempts to be robust and to never panic; any
// error is logged and returned so the caller can choose to ignore it.
func (p *Publisher) publish(ctx context.Context, ev ReservationEvent) error {
	if p.url == "" {
		return errors.New("notification publisher disabled: no broker URL")
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
