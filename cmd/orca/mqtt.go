package main

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/eclipse/paho.golang/paho"

	"github.com/ziXnOrg/ORCA/internal/config"
	"github.com/ziXnOrg/ORCA/internal/sink"
)

// buildMQTTSink dials cfg.MQTTBrokerURL and completes the MQTT CONNECT
// handshake before handing the connection to sink.NewMQTTSink. Kept out
// of wiring.go since dialing needs its own URL parsing/error path.
func buildMQTTSink(ctx context.Context, cfg config.Config) (*sink.MQTTSink, error) {
	if cfg.MQTTBrokerURL == "" {
		return nil, fmt.Errorf("mqtt sink configured without ORCA_MQTT_BROKER_URL")
	}
	u, err := url.Parse(cfg.MQTTBrokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse mqtt broker url: %w", err)
	}
	conn, err := net.Dial("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("dial mqtt broker: %w", err)
	}
	client := paho.NewClient(paho.ClientConfig{Conn: conn})
	if _, err := client.Connect(ctx, &paho.Connect{ClientID: "orca", CleanStart: true, KeepAlive: 30}); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return sink.NewMQTTSink(client, cfg.MQTTTopic, 1), nil
}
