// Package amqp carries overlay messages through an AMQP broker. Every member
// consumes a durable queue named after it, bound to a direct exchange with
// its member id as routing key, so an endpoint address is just a member id.
package amqp

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/multierr"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/transport"
)

// Name is the protocol id endpoints use for this transport
const Name = "amqp"

// Config holds broker settings
type Config struct {
	URL      string `json:"url" validate:"required,url"`
	Exchange string `json:"exchange" validate:"required"`
	// Queue is the inbound queue and routing key, normally the local member id
	Queue string `json:"queue" validate:"required"`
}

// ConnectionString returns the broker URL without credentials
func (c *Config) ConnectionString() string {
	if parsed, err := url.Parse(c.URL); err == nil {
		parsed.User = nil
		return fmt.Sprintf("amqp://%s", parsed.Host)
	}
	return "amqp://***"
}

// Transport publishes to and consumes from the overlay exchange
type Transport struct {
	config Config
	dial   Dialer
	logger logging.Logger

	mu        sync.Mutex
	publisher Channel
	consumer  Channel
	stop      context.CancelFunc
	done      chan struct{}
}

// Option configures a Transport
type Option func(*Transport)

// WithDialer replaces the broker dialer
func WithDialer(dial Dialer) Option {
	return func(t *Transport) { t.dial = dial }
}

// New creates an AMQP transport; connections are opened lazily
func New(config Config, logger logging.Logger, opts ...Option) *Transport {
	t := &Transport{config: config, dial: Dial}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.Component(logger, "transport.amqp").WithFields(
		logging.String("broker", config.ConnectionString()),
		logging.String("exchange", config.Exchange),
	)
	return t
}

// Name returns "amqp"
func (t *Transport) Name() string { return Name }

func (t *Transport) declareExchange(ch Channel) error {
	return ch.ExchangeDeclare(t.config.Exchange, "direct", true, false, false, false, nil)
}

func (t *Transport) publishChannel() (Channel, error) {
	if t.publisher != nil {
		return t.publisher, nil
	}
	ch, err := t.dial(t.config.URL)
	if err != nil {
		return nil, errors.ConnectionError("failed to connect to AMQP broker", err)
	}
	if err := t.declareExchange(ch); err != nil {
		ch.Close()
		return nil, errors.ConnectionError("failed to declare exchange "+t.config.Exchange, err)
	}
	t.publisher = ch
	return ch, nil
}

// Send publishes msg with the target member id as routing key
func (t *Transport) Send(ctx context.Context, address string, msg *transport.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ch, err := t.publishChannel()
	if err != nil {
		return err
	}

	err = ch.Publish(t.config.Exchange, address, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/octet-stream",
		Type:         string(msg.Kind),
		Headers:      headers,
		Body:         msg.Body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		// drop the channel so the next send reconnects
		t.publisher.Close()
		t.publisher = nil
		return errors.CommunicationError("AMQP publish failed", err).WithContext("routing_key", address)
	}
	return nil
}

// Listen declares the member queue and consumes it until ctx is done or Shutdown
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.consumer != nil {
		return errors.ConnectionError("AMQP transport already listening", nil)
	}

	ch, err := t.dial(t.config.URL)
	if err != nil {
		return errors.ConnectionError("failed to connect to AMQP broker", err)
	}

	deliveries, err := t.subscribe(ch)
	if err != nil {
		ch.Close()
		return err
	}

	listenCtx, stop := context.WithCancel(ctx)
	t.consumer, t.stop, t.done = ch, stop, make(chan struct{})
	go t.consume(listenCtx, deliveries, handler, t.done)

	t.logger.Info("AMQP transport consuming", logging.String("queue", t.config.Queue))
	return nil
}

func (t *Transport) subscribe(ch Channel) (<-chan amqp.Delivery, error) {
	queue := t.config.Queue

	if err := t.declareExchange(ch); err != nil {
		return nil, errors.InternalError("failed to declare exchange "+t.config.Exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, errors.InternalError("failed to declare queue "+queue, err)
	}
	if err := ch.QueueBind(queue, queue, t.config.Exchange, false, nil); err != nil {
		return nil, errors.InternalError("failed to bind queue "+queue, err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, errors.InternalError("failed to start consuming from queue "+queue, err)
	}
	return deliveries, nil
}

func (t *Transport) consume(ctx context.Context, deliveries <-chan amqp.Delivery, handler transport.Handler, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				t.logger.Info("AMQP delivery channel closed", logging.String("queue", t.config.Queue))
				return
			}
			t.handle(ctx, d, handler)
		}
	}
}

func (t *Transport) handle(ctx context.Context, d amqp.Delivery, handler transport.Handler) {
	kind := transport.Kind(d.Type)
	if !kind.Valid() {
		t.logger.Warn("Discarding AMQP message of unknown kind", logging.String("kind", d.Type))
		_ = d.Nack(false, false)
		return
	}

	msg := transport.NewMessage(kind, d.Body)
	for k, v := range d.Headers {
		if s, ok := v.(string); ok {
			msg.Headers[k] = s
		} else {
			msg.Headers[k] = fmt.Sprintf("%v", v)
		}
	}

	err := handler(ctx, msg)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	// malformed messages never become valid, anything else may be transient
	requeue := !errors.IsType(err, errors.ErrTypeFormat)
	t.logger.Warn("Inbound message handler failed",
		logging.String("kind", string(kind)),
		logging.String("from", msg.Header(transport.HeaderFrom)),
		logging.Bool("requeue", requeue),
		logging.Err(err),
	)
	_ = d.Nack(false, requeue)
}

// Shutdown stops consuming and closes both channels
func (t *Transport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	consumer, publisher, stop, done := t.consumer, t.publisher, t.stop, t.done
	t.consumer, t.publisher, t.stop, t.done = nil, nil, nil, nil
	t.mu.Unlock()

	var err error
	if stop != nil {
		stop()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if consumer != nil {
		err = multierr.Append(err, consumer.Close())
	}
	if publisher != nil {
		err = multierr.Append(err, publisher.Close())
	}
	return err
}
