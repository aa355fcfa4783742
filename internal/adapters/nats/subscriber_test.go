package natsadapter

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

type mockMsg struct {
	acked, naked, termed int
}

func (m *mockMsg) Ack(...nats.AckOpt) error  { m.acked++; return nil }
func (m *mockMsg) Nak(...nats.AckOpt) error  { m.naked++; return nil }
func (m *mockMsg) Term(...nats.AckOpt) error { m.termed++; return nil }

func TestSettle(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ok", nil, "ack"},
		{"malformed", fmt.Errorf("%w: bad json", domain.ErrInvalidInput), "term"},
		{"bad status", domain.ErrInvalidStatus, "term"},
		{"unknown bus", fmt.Errorf("%w: id 9", domain.ErrUnknownBus), "term"},
		{"store down", fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable), "nak"},
		{"timeout", domain.ErrTimeout, "nak"},
		{"other", errors.New("boom"), "nak"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockMsg{}
			_ = Settle(m, tt.err)
			got := map[string]int{"ack": m.acked, "nak": m.naked, "term": m.termed}
			if got[tt.want] != 1 || m.acked+m.naked+m.termed != 1 {
				t.Errorf("expected exactly one %s, got %+v", tt.want, got)
			}
		})
	}
}

func TestSubjectBusID(t *testing.T) {
	tests := map[string]int64{
		"byahero.reports.12":    12,
		"byahero.reports.any":   0,
		"byahero.reports.0":     0,
		"byahero.reports.-3":    0,
		"byahero.reports.a.b.7": 7,
	}
	for subject, want := range tests {
		if got := SubjectBusID(subject); got != want {
			t.Errorf("SubjectBusID(%q) = %d, want %d", subject, got, want)
		}
	}
	if got := BusUpdatedSubject(4); got != "byahero.bus.4.updated" {
		t.Errorf("unexpected subject %q", got)
	}
}
