// Package events publishes settlement facts for dashboards and reports.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"brewpos/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TypeTransactionSettled is the type of the event emitted after a commit.
const TypeTransactionSettled = "transaction.settled"

// TransactionSettled is the message body. Amounts are in centavos.
type TransactionSettled struct {
	Type          string               `json:"type"`
	Code          string               `json:"code"`
	SessionID     string               `json:"sessionId"`
	CashierName   string               `json:"cashierName,omitempty"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	TotalCents    int64                `json:"totalCents"`
	ItemCount     int                  `json:"itemCount"`
	Products      []string             `json:"products"`
	SettledAt     time.Time            `json:"settledAt"`
}

// FromSettlement builds the event for a committed settlement.
func FromSettlement(s domain.Settlement) TransactionSettled {
	ev := TransactionSettled{
		Type:          TypeTransactionSettled,
		Code:          s.Transaction.Code,
		SessionID:     s.Transaction.SessionID,
		CashierName:   s.Transaction.CashierName,
		PaymentMethod: s.Transaction.PaymentMethod,
		TotalCents:    s.Transaction.TotalCents,
		SettledAt:     s.Transaction.CreatedAt.UTC(),
		Products:      make([]string, 0, len(s.Items)),
	}
	for _, it := range s.Items {
		ev.ItemCount += it.Quantity
		ev.Products = append(ev.Products, it.ProductName)
	}
	return ev
}

// Publisher emits settlement events.
type Publisher interface {
	PublishSettled(ctx context.Context, ev TransactionSettled) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by transaction code.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafka(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	named := logger.Named("events")
	sugar := named.Sugar()
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Logger:       kafka.LoggerFunc(sugar.Debugf),
		ErrorLogger:  kafka.LoggerFunc(sugar.Errorf),
	}
	return &KafkaPublisher{writer: w, logger: named}
}

func (p *KafkaPublisher) PublishSettled(ctx context.Context, ev TransactionSettled) error {
	msg, err := Message(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("publish failed", zap.String("code", ev.Code), zap.Error(err))
		return fmt.Errorf("publish %s: %w", ev.Code, err)
	}
	p.logger.Debug("published", zap.String("code", ev.Code))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Message encodes ev as a Kafka message keyed by code.
func Message(ev TransactionSettled) (kafka.Message, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", ev.Code, err)
	}
	return kafka.Message{
		Key:   []byte(ev.Code),
		Value: body,
		Time:  ev.SettledAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}, nil
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishSettled(context.Context, TransactionSettled) error { return nil }
func (Nop) Close() error                                             { return nil }
