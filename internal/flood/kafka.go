// v0
// internal/flood/kafka.go
package flood

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of kafka.Writer the alert sink needs. The breaker's
// CBKafkaWriter satisfies it too.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter builds a writer that routes by message topic, so one writer serves
// every zone's alert topic.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// KafkaAlertSink publishes alerts as JSON to <prefix>.<zone>, keyed by sensor.
type KafkaAlertSink struct {
	w      MessageWriter
	prefix string
	lg     *slog.Logger
}

func NewKafkaAlertSink(w MessageWriter, topicPrefix string, lg *slog.Logger) *KafkaAlertSink {
	return &KafkaAlertSink{w: w, prefix: topicPrefix, lg: lg}
}

// Topic returns the destination topic for a zone.
func (s *KafkaAlertSink) Topic(zone string) string {
	return s.prefix + "." + zone
}

func (s *KafkaAlertSink) Emit(ctx context.Context, a Alert) error {
	b, err := json.Marshal(a)
	if err != nil {
		s.lg.Error("marshal failed", "err", err)
		return err
	}
	msg := kafka.Message{Topic: s.Topic(a.Zone), Key: []byte(a.SensorID), Value: b, Time: a.At}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		s.lg.Error("kafka write failed", "err", err, "alert_id", a.ID, "topic", msg.Topic)
		return err
	}
	s.lg.Info("alert published", "alert_id", a.ID, "topic", msg.Topic, "state", a.State.String())
	return nil
}
