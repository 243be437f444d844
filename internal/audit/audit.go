// Package audit emits a best-effort trail of relayed messages to Kafka.
// It records routing facts (direction, ids, channel), never message bodies,
// so it stays clear of conversation-history storage.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dmbridge/dmbridge/internal/relay"
)

// Writer publishes relay audit events. A nil *Writer is a valid no-op sink.
type Writer struct {
	w   *kafka.Writer
	log *slog.Logger
}

// NewWriter builds a Kafka-backed audit writer, or nil when no brokers are
// configured (auditing disabled).
func NewWriter(brokers []string, topic string, log *slog.Logger) *Writer {
	if len(brokers) == 0 {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
		log: log,
	}
}

// Record publishes one event. Failures are logged and swallowed; the audit
// trail must never fail or delay a relay.
func (a *Writer) Record(ctx context.Context, ev relay.AuditEvent) {
	if a == nil {
		return
	}
	value, err := json.Marshal(ev)
	if err != nil {
		a.log.Warn("audit event marshal failed", "error", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(ev.Direction),
		Value: value,
		Time:  ev.At,
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.w.WriteMessages(writeCtx, msg); err != nil {
		a.log.Warn("audit event write failed", "error", err, "trace_id", ev.TraceID)
	}
}

// Close flushes and closes the underlying writer.
func (a *Writer) Close() error {
	if a == nil {
		return nil
	}
	return a.w.Close()
}
