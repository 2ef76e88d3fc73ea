// Copyright 2025 James Ross
package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// webhookPublisher delivers events to a single HTTP endpoint, HMAC-signing
// the body when a secret is configured.
type webhookPublisher struct {
	url    string
	secret string
	client *http.Client
	log    *zap.Logger
}

func newWebhookPublisher(url, secret string, log *zap.Logger) *webhookPublisher {
	return &webhookPublisher{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
		log: log,
	}
}

func (w *webhookPublisher) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event for webhook: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ado-flow-metrics/1.0")
	req.Header.Set("X-Webhook-Delivery", uuid.NewString())
	req.Header.Set("X-Webhook-Event", string(ev.Kind))
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(ev.Timestamp.Unix(), 10))
	req.Header.Set("X-Webhook-Run-ID", ev.RunID)
	if w.secret != "" {
		req.Header.Set("X-Webhook-Signature", w.sign(payload))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.log.Warn("webhook delivery failed",
			zap.String("event", string(ev.Kind)),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return fmt.Errorf("webhook delivery returned HTTP %d", resp.StatusCode)
	}

	w.log.Debug("webhook delivery succeeded", zap.String("event", string(ev.Kind)), zap.Int("status", resp.StatusCode))
	return nil
}

// sign computes the HMAC-SHA256 signature of the payload, in the
// "sha256=<hex>" form the webhook endpoint is expected to verify.
func (w *webhookPublisher) sign(payload []byte) string {
	h := hmac.New(sha256.New, []byte(w.secret))
	h.Write(payload)
	return fmt.Sprintf("sha256=%x", h.Sum(nil))
}

func (w *webhookPublisher) close() error {
	w.client.CloseIdleConnections()
	return nil
}
