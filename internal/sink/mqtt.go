package sink

import (
	"context"
	"fmt"

	"github.com/eclipse/paho.golang/paho"
)

// MQTTSink publishes WAL records to an MQTT topic. The topic is
// parameterized by run id (e.g. "orca/events/<run_id>") so subscribers
// can filter per-run without inspecting payloads.
type MQTTSink struct {
	client      *paho.Client
	topicPrefix string
	qos         byte
}

// NewMQTTSink wraps an already-connected paho client.
func NewMQTTSink(client *paho.Client, topicPrefix string, qos byte) *MQTTSink {
	return &MQTTSink{client: client, topicPrefix: topicPrefix, qos: qos}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Publish(ctx context.Context, runID string, line []byte) error {
	topic := s.topicPrefix + "/" + runID
	_, err := s.client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     s.qos,
		Payload: line,
	})
	if err != nil {
		return fmt.Errorf("sink: mqtt publish to %s: %w", topic, err)
	}
	return nil
}
