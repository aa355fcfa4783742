package natsadapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

// ReportHandler processes one raw location report. busID is taken from the
// last subject token when it is numeric, otherwise 0.
type ReportHandler func(ctx context.Context, busID int64, data []byte) error

// Subscriber consumes location reports from NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS and makes sure the streams exist.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := Connect(url, "byahero-ingestor")
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := EnsureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeReports delivers every report on byahero.reports.> to handle.
// Reports that can never succeed are terminated; other failures are
// redelivered.
func (s *Subscriber) SubscribeReports(ctx context.Context, handle ReportHandler) error {
	sub, err := s.js.Subscribe(SubjectReports, func(msg *nats.Msg) {
		_ = Settle(msg, handle(ctx, SubjectBusID(msg.Subject), msg.Data))
	},
		nats.Durable("report-processor"),
		nats.ManualAck(),
		nats.MaxDeliver(5),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Acker is the acknowledgement surface of *nats.Msg.
type Acker interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

// Settle acks, terms or naks msg depending on the handler result.
func Settle(msg Acker, err error) error {
	switch {
	case err == nil:
		return msg.Ack()
	case Permanent(err):
		return msg.Term()
	default:
		return msg.Nak()
	}
}

// Permanent reports whether redelivering a report that failed with err could
// never succeed.
func Permanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrInvalidStatus) ||
		errors.Is(err, domain.ErrInvalidSeats) ||
		errors.Is(err, domain.ErrUnknownBus)
}

// SubjectBusID parses the bus id from "byahero.reports.<id>".
func SubjectBusID(subject string) int64 {
	tok := subject[strings.LastIndexByte(subject, '.')+1:]
	id, err := strconv.ParseInt(tok, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
