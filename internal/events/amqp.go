package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

var (
	errMissingQueue    = errors.New("events: queue name is required")
	errPublisherClosed = errors.New("events: publisher is closed")
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// amqpSession is one dialled connection and its publishing channel. The
// closed signals fire when the broker drops either of them.
type amqpSession struct {
	ch         amqpChannel
	closeConn  func() error
	connClosed <-chan *amqp.Error
	chanClosed <-chan *amqp.Error
}

func (s *amqpSession) alive() bool {
	select {
	case <-s.connClosed:
		return false
	case <-s.chanClosed:
		return false
	default:
		return true
	}
}

func (s *amqpSession) close() {
	_ = s.ch.Close()
	if s.closeConn != nil {
		_ = s.closeConn()
	}
}

type sessionDialer func(url, queue string) (*amqpSession, error)

// AMQPPublisher writes events to a durable RabbitMQ queue through the default
// exchange. A session lost to a broker restart is redialled on the next publish.
type AMQPPublisher struct {
	mu      sync.Mutex
	url     string
	queue   string
	dial    sessionDialer
	session *amqpSession
	closed  bool
}

func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	return newAMQPPublisher(url, queue, dialSession)
}

func newAMQPPublisher(url, queue string, dial sessionDialer) (*AMQPPublisher, error) {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return nil, errMissingQueue
	}
	session, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{url: url, queue: queue, dial: dial, session: session}, nil
}

func dialSession(url, queue string) (*amqpSession, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &amqpSession{
		ch:         ch,
		closeConn:  conn.Close,
		connClosed: conn.NotifyClose(make(chan *amqp.Error, 1)),
		chanClosed: ch.NotifyClose(make(chan *amqp.Error, 1)),
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	publishing, err := encodePublishing(event)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	session, err := p.currentSession()
	if err != nil {
		return err
	}
	err = session.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		publishing,
	)
	if err != nil && (errors.Is(err, amqp.ErrClosed) || !session.alive()) {
		p.dropSession()
	}
	return err
}

// currentSession returns a live session, redialling when the broker closed
// the previous one. Callers hold mu.
func (p *AMQPPublisher) currentSession() (*amqpSession, error) {
	if p.closed {
		return nil, errPublisherClosed
	}
	if p.session != nil && p.session.alive() {
		return p.session, nil
	}
	p.dropSession()
	session, err := p.dial(p.url, p.queue)
	if err != nil {
		return nil, err
	}
	p.session = session
	return session, nil
}

func (p *AMQPPublisher) dropSession() {
	if p.session == nil {
		return
	}
	p.session.close()
	p.session = nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.dropSession()
	return nil
}

func encodePublishing(event Event) (amqp.Publishing, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(event.Type),
		Body:         body,
		Timestamp:    event.OccurredAt,
	}, nil
}
