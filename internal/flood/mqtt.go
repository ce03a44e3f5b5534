// v0
// internal/flood/mqtt.go
package flood

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTAlertSink publishes alerts to <prefix>/<zone>/alerts at QoS 1.
type MQTTAlertSink struct {
	client mqtt.Client
	prefix string
}

func NewMQTTAlertSink(client mqtt.Client, topicPrefix string) *MQTTAlertSink {
	return &MQTTAlertSink{client: client, prefix: topicPrefix}
}

func (s *MQTTAlertSink) Topic(zone string) string {
	return fmt.Sprintf("%s/%s/alerts", s.prefix, zone)
}

func (s *MQTTAlertSink) Emit(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	token := s.client.Publish(s.Topic(a.Zone), 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
