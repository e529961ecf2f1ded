package rabbit

// This file publishes "question answered" events to RabbitMQ so other services
// (dashboards, study planners) can follow a candidate's progress.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "concurso.events"
	routingPrefix   = "quiz.answered."
)

// AnswerEvent is the JSON body of every published message.
type AnswerEvent struct {
	Correct bool      `json:"correct"`
	Subject string    `json:"subject"`
	At      time.Time `json:"at"`
}

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher implements app.AnswerSink on top of a topic exchange.
type Publisher struct {
	exchange string
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	ch   publishChannel
	conn *amqp.Connection
}

// Dial connects to the broker and declares the durable topic exchange.
func Dial(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	p := newPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch publishChannel, exchange string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		exchange: exchange,
		logger:   logger.With("component", "rabbit"),
		now:      time.Now,
		ch:       ch,
	}
}

// QuestionAnswered publishes one event. Broker failures are logged and never
// reach the session.
func (p *Publisher) QuestionAnswered(ctx context.Context, correct bool, subject string) {
	body, err := json.Marshal(AnswerEvent{Correct: correct, Subject: subject, At: p.now().UTC()})
	if err != nil {
		p.logger.Error("encode answer event", "error", err)
		return
	}

	key := RoutingKey(subject)
	p.mu.Lock()
	// amqp channels are not safe for concurrent publishing
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
		Body:         body,
	})
	p.mu.Unlock()
	if err != nil {
		p.logger.Warn("publish answer event failed", "routing_key", key, "error", err)
	}
}

func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

var accents = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a", "ä", "a",
	"é", "e", "ê", "e", "è", "e",
	"í", "i", "î", "i",
	"ó", "o", "ô", "o", "õ", "o", "ö", "o",
	"ú", "u", "û", "u", "ü", "u",
	"ç", "c",
)

// RoutingKey turns a subject into quiz.answered.<slug>,
// e.g. "Língua Portuguesa" -> quiz.answered.lingua-portuguesa.
func RoutingKey(subject string) string {
	slug := accents.Replace(strings.ToLower(strings.TrimSpace(subject)))
	var b strings.Builder
	dash := false
	for _, r := range slug {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		out = "unknown"
	}
	return routingPrefix + out
}
