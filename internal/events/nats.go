// Copyright 2025 James Ross
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// natsPublisher publishes events to a JetStream subject derived from the
// event kind, so a subscriber can wildcard-match e.g. "flowmetrics.alert.*".
type natsPublisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	log  *zap.Logger
}

func newNATSPublisher(url string, log *zap.Logger) (*natsPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return &natsPublisher{conn: conn, js: js, log: log}, nil
}

func (n *natsPublisher) publish(ev Event) error {
	subject := fmt.Sprintf("flowmetrics.%s", ev.Kind)

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event for NATS: %w", err)
	}

	msg := &nats.Msg{Subject: subject, Data: payload, Header: make(nats.Header)}
	msg.Header.Set("Event-Kind", string(ev.Kind))
	msg.Header.Set("Run-ID", ev.RunID)
	msg.Header.Set("Timestamp", ev.Timestamp.Format(time.RFC3339))

	if _, err := n.js.PublishMsg(msg); err != nil {
		n.log.Warn("NATS publish failed", zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("NATS publish: %w", err)
	}
	n.log.Debug("NATS publish succeeded", zap.String("subject", subject))
	return nil
}

func (n *natsPublisher) close() error {
	n.conn.Close()
	return nil
}
