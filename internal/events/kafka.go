package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/example/dmjr-ledger/internal/ledger"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "ledger.transactions"

// TransactionCommittedEvent is published once for every committed ledger
// transaction. AmountG is AmountMg at a display scale of 1 g = 1000 mg.
type TransactionCommittedEvent struct {
	EventID    string          `json:"event_id"`
	TxID       string          `json:"txid"`
	Type       ledger.TxType   `json:"type"`
	From       string          `json:"from,omitempty"`
	To         string          `json:"to"`
	AmountMg   int64           `json:"amount_mg"`
	AmountG    decimal.Decimal `json:"amount_g"`
	Memo       string          `json:"memo,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewTransactionCommittedEvent builds the event for tx.
func NewTransactionCommittedEvent(tx ledger.Transaction) TransactionCommittedEvent {
	return TransactionCommittedEvent{
		EventID:    uuid.NewString(),
		TxID:       tx.TxID,
		Type:       tx.Type,
		From:       tx.From,
		To:         tx.To,
		AmountMg:   tx.AmountMg,
		AmountG:    decimal.New(tx.AmountMg, -3),
		Memo:       tx.Memo,
		OccurredAt: tx.Timestamp,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends TransactionCommittedEvents to Kafka. It implements
// ledger.CommitObserver; publishing never blocks or fails a ledger operation.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher creates an asynchronous publisher for brokers. Messages are keyed
// by destination account so events for one account stay in one partition.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to publish ledger events",
					"topic", topic,
					"messages", len(messages),
					"error", err,
				)
			}
		},
	}
	return newPublisher(w, topic, logger)
}

func newPublisher(w messageWriter, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{writer: w, topic: topic, logger: logger}
}

// Publish writes one event.
func (p *Publisher) Publish(ctx context.Context, event TransactionCommittedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.To),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("TransactionCommitted")},
			{Key: "txid", Value: []byte(event.TxID)},
		},
	})
}

// TransactionCommitted implements ledger.CommitObserver.
func (p *Publisher) TransactionCommitted(ctx context.Context, tx ledger.Transaction) {
	// the request context ends with the response; the event must outlive it
	if err := p.Publish(context.WithoutCancel(ctx), NewTransactionCommittedEvent(tx)); err != nil {
		p.logger.Error("failed to queue ledger event",
			"topic", p.topic,
			"txid", tx.TxID,
			"error", err,
		)
	}
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ ledger.CommitObserver = (*Publisher)(nil)
