package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"bugboard/pkg/report"
)

// Notifier broadcasts the outcome of a sync run.
type Notifier interface {
	RunCompleted(ctx context.Context, summary report.Summary) error
	Close() error
}

// AMQPNotifier publishes run summaries to a fanout exchange so chat bots
// and dashboards can react to finished syncs.
type AMQPNotifier struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	url      string
	exchange string
	logger   *slog.Logger
}

// NewAMQPNotifier connects to the broker and declares the exchange.
func NewAMQPNotifier(url, exchange string, logger *slog.Logger) (*AMQPNotifier, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("amqp url required")
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = "bugboard.sync"
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &AMQPNotifier{url: url, exchange: exchange, logger: logger}
	if err := n.connect(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *AMQPNotifier) connect() error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(n.exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	n.conn = conn
	n.channel = channel
	return nil
}

// RunCompleted publishes the summary as a persistent JSON message. A closed
// connection triggers one reconnect attempt before giving up.
func (n *AMQPNotifier) RunCompleted(ctx context.Context, summary report.Summary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	publish := func() error {
		return n.channel.PublishWithContext(ctx, n.exchange, "", false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	}
	if err := publish(); err != nil {
		n.logger.Warn("amqp publish failed, reconnecting", "error", err)
		if err := n.connect(); err != nil {
			return err
		}
		return publish()
	}
	return nil
}

// Close shuts down the channel and connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.channel != nil {
		_ = n.channel.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// NopNotifier drops all notifications. Used when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) RunCompleted(context.Context, report.Summary) error { return nil }
func (NopNotifier) Close() error                                      { return nil }
