package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

// Subjects.
const (
	SubjectReports    = "byahero.reports.>"
	subjectBusPrefix  = "byahero.bus."
	subjectBusUpdated = ".updated"
)

// BusUpdatedSubject is the subject an update of bus id is published on.
func BusUpdatedSubject(id int64) string {
	return subjectBusPrefix + strconv.FormatInt(id, 10) + subjectBusUpdated
}

// BusUpdatedEvent is the payload published after each committed write.
type BusUpdatedEvent struct {
	Bus        *domain.Bus `json:"bus"`
	OccurredAt time.Time   `json:"occurred_at"`
}

var streams = []nats.StreamConfig{
	{
		Name:      "BYAHERO_REPORTS",
		Subjects:  []string{SubjectReports},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    10 * time.Minute,
		Storage:   nats.FileStorage,
	},
	{
		Name:              "BYAHERO_BUS",
		Subjects:          []string{subjectBusPrefix + ">"},
		Retention:         nats.LimitsPolicy,
		MaxAge:            1 * time.Hour,
		MaxMsgsPerSubject: 1,
		Storage:           nats.FileStorage,
	},
}

// Connect dials NATS with unlimited reconnects.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// EnsureStreams creates the JetStream streams, updating ones that exist.
func EnsureStreams(js nats.JetStreamContext) error {
	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist; update it instead
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url, "byahero-publisher")
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
	return &Publisher{conn: conn, js: js}, nil
}

// PublishBusUpdated announces the committed state of a bus.
func (p *Publisher) PublishBusUpdated(ctx context.Context, bus *domain.Bus) error {
	data, err := json.Marshal(BusUpdatedEvent{Bus: bus, OccurredAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(BusUpdatedSubject(bus.ID), data, nats.Context(ctx))
	return err
}

// Connected reports whether the connection is currently up.
func (p *Publisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
