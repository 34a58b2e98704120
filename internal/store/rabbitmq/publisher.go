package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/prompt-history/internal/audit"
)

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	// amqp channels are not safe for concurrent publishes
	mu sync.Mutex
}

// DeclareQueues declares the main queue plus its retry and dead-letter
// queues. Publisher and worker must declare with identical arguments.
func DeclareQueues(ch *amqp.Channel, queue string) error {
	mainQ := queue
	retryQ := queue + ".retry"
	dlqQ := queue + ".dlq"

	// DLQ
	if _, err := ch.QueueDeclare(
		dlqQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// Retry queue: message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(
		retryQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": mainQ,
		},
	); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	_, err := ch.QueueDeclare(
		mainQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlqQ,
		},
	)
	return err
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Publish sends e as a persistent JSON message. The event id doubles as the
// AMQP message id so consumers can deduplicate.
func (p *Publisher) Publish(ctx context.Context, e audit.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ID,
			Type:         string(e.Type),
			Body:         body,
			Timestamp:    e.CreatedAt,
		},
	)
}

// DecodeEvent parses a delivery body produced by Publish.
func DecodeEvent(body []byte) (audit.Event, error) {
	var e audit.Event
	if err := json.Unmarshal(body, &e); err != nil {
		return audit.Event{}, err
	}
	if e.ID == "" || e.Type == "" || e.UserID == 0 {
		return audit.Event{}, ErrInvalidEvent
	}
	return e, nil
}
