package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const DefaultExchange = "escrow.events"

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes escrow events to a durable topic exchange. Calls
// go through a circuit breaker so a broker outage fails fast instead of
// stalling every escrow request behind a dial timeout.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	timeout  time.Duration
	cb       *gobreaker.CircuitBreaker
}

// Options tunes the publisher. Zero values take defaults.
type Options struct {
	Exchange       string
	PublishTimeout time.Duration
	TripAfter      uint32
	OpenFor        time.Duration
}

// Dial connects to the broker and declares the exchange.
func Dial(rawURL string, opts Options) (*AMQPPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp.DialConfig(cleanURL, amqp.Config{
		Dial:       amqp.DefaultDial(10 * time.Second),
		Properties: amqp.Table{"connection_name": "escrow-ledger"},
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	opts = opts.withDefaults()
	if err := ch.ExchangeDeclare(
		opts.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", opts.Exchange, err)
	}

	p := newPublisher(ch, opts)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, opts Options) *AMQPPublisher {
	opts = opts.withDefaults()
	settings := gobreaker.Settings{
		Name:        "amqp-publisher",
		MaxRequests: 1,
		Timeout:     opts.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.TripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &AMQPPublisher{
		ch:       ch,
		exchange: opts.Exchange,
		timeout:  opts.PublishTimeout,
		cb:       gobreaker.NewCircuitBreaker(settings),
	}
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Exchange) == "" {
		o.Exchange = DefaultExchange
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}
	if o.TripAfter == 0 {
		o.TripAfter = 5
	}
	if o.OpenFor <= 0 {
		o.OpenFor = 30 * time.Second
	}
	return o
}

// PublishEscrowEvent sends one committed escrow event as persistent JSON.
func (p *AMQPPublisher) PublishEscrowEvent(ctx context.Context, escrow models.Escrow, event models.EscrowEvent) error {
	body, err := json.Marshal(NewEscrowMessage(escrow, event))
	if err != nil {
		observability.IncrementEventPublish("failed")
		return fmt.Errorf("marshal escrow event: %w", err)
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return nil, p.ch.PublishWithContext(pubCtx, p.exchange, RoutingKey(event.EventType), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    strconv.FormatInt(event.ID, 10),
			Timestamp:    event.CreatedAt,
			Type:         event.EventType,
			Headers:      traceHeaders(ctx),
			Body:         body,
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.IncrementEventPublish("breaker_open")
		} else {
			observability.IncrementEventPublish("failed")
		}
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}
	observability.IncrementEventPublish("success")
	return nil
}

func (p *AMQPPublisher) Close() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse amqp url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// traceHeaders carries the caller's trace context so consumers can link their
// spans to the request that committed the event.
func traceHeaders(ctx context.Context) amqp.Table {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) == 0 {
		return nil
	}
	headers := make(amqp.Table, len(carrier))
	for k, v := range carrier {
		headers[k] = v
	}
	return headers
}
