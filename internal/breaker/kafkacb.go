// v2
// internal/breaker/kafkacb.go
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// kafkaMessageWriter mirrors the subset of kafka.Writer used by the wrapper.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Settings are the runtime tunables for Kafka writer protection.
type Settings struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	OpenFor          time.Duration
	Timeout          time.Duration
	Backoff          time.Duration
}

// DefaultSettings mirrors the CB_* defaults: disabled, 5 failures, 2 successes,
// 30s open, 3s per attempt, 200ms back-off.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenFor:          30 * time.Second,
		Timeout:          3 * time.Second,
		Backoff:          200 * time.Millisecond,
	}
}

// KafkaBreaker applies retry, back-off and per-attempt timeouts around a Breaker.
type KafkaBreaker struct {
	settings Settings
	breaker  *Breaker
}

func NewKafkaBreaker(name string, s Settings, probe func(ctx context.Context) error, lg *slog.Logger) *KafkaBreaker {
	kb := &KafkaBreaker{settings: s}
	if s.Enabled {
		kb.breaker = New(name, Config{
			MaxFailures:      s.FailureThreshold,
			ResetTimeout:     s.OpenFor,
			SuccessesToClose: s.SuccessThreshold,
		}, probe, lg)
	}
	return kb
}

// Enabled reports whether breaker protections are active.
func (k *KafkaBreaker) Enabled() bool {
	return k != nil && k.settings.Enabled && k.breaker != nil
}

// Breaker exposes the underlying breaker for inspection.
func (k *KafkaBreaker) Breaker() *Breaker {
	if k == nil {
		return nil
	}
	return k.breaker
}

// CBKafkaWriter wraps a kafka.Writer with circuit-breaker protection.
type CBKafkaWriter struct {
	breaker *KafkaBreaker
	writer  kafkaMessageWriter
}

func NewCBKafkaWriter(writer kafkaMessageWriter, breaker *KafkaBreaker) *CBKafkaWriter {
	return &CBKafkaWriter{writer: writer, breaker: breaker}
}

// WriteMessages publishes messages with retry/back-off driven by the breaker policy.
func (w *CBKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w == nil || w.writer == nil {
		return errors.New("nil kafka writer")
	}
	if !w.breaker.Enabled() {
		return w.writer.WriteMessages(ctx, msgs...)
	}
	return w.breaker.do(ctx, func(execCtx context.Context) error {
		return w.writer.WriteMessages(execCtx, msgs...)
	})
}

func (k *KafkaBreaker) do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempts++
		attemptCtx, cancel := k.withAttemptContext(ctx)
		err := k.breaker.Execute(attemptCtx, op)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrOpen) {
			if waitErr := k.waitBackoff(ctx); waitErr != nil {
				return waitErr
			}
			continue
		}
		if attempts >= k.settings.FailureThreshold {
			return err
		}
		if waitErr := k.waitBackoff(ctx); waitErr != nil {
			return waitErr
		}
	}
}

func (k *KafkaBreaker) withAttemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if k.settings.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, k.settings.Timeout)
}

func (k *KafkaBreaker) waitBackoff(ctx context.Context) error {
	if k.settings.Backoff <= 0 {
		return nil
	}
	timer := time.NewTimer(k.settings.Backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
