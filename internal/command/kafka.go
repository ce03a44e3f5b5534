// v0
// internal/command/kafka.go
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of kafka.Reader the command source uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// NewKafkaReader consumes the command topic as part of groupID.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1, MaxBytes: 10e6,
		MaxWait: 200 * time.Millisecond,
	})
}

type wireCommand struct {
	Key string `json:"key"`
}

// KafkaSource reads commands published as {"key":"n"}. Malformed messages are
// logged and skipped.
type KafkaSource struct {
	r       MessageReader
	lg      *slog.Logger
	backoff time.Duration
}

func NewKafkaSource(r MessageReader, lg *slog.Logger) *KafkaSource {
	return &KafkaSource{r: r, lg: lg, backoff: 500 * time.Millisecond}
}

func (s *KafkaSource) Next(ctx context.Context) (Command, error) {
	for {
		m, err := s.r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			if errors.Is(err, context.Canceled) {
				return 0, err
			}
			if errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("%w: %w", ErrClosed, err)
			}
			s.lg.Warn("read error", "err", err)
			select {
			case <-time.After(s.backoff):
				continue
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		var wc wireCommand
		if err := json.Unmarshal(m.Value, &wc); err != nil {
			s.lg.Warn("invalid json", "err", err, "topic", m.Topic, "offset", m.Offset)
			continue
		}
		r, size := utf8.DecodeRuneInString(wc.Key)
		if r == utf8.RuneError || size != len(wc.Key) {
			s.lg.Warn("invalid command key", "key", wc.Key, "offset", m.Offset)
			continue
		}
		s.lg.Info("command received", "key", wc.Key, "topic", m.Topic, "offset", m.Offset)
		return Command(r), nil
	}
}

func (s *KafkaSource) Close() error { return s.r.Close() }
