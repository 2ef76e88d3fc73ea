// Copyright 2025 James Ross
package events

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arjaygg/ado-flow-metrics/internal/config"
)

func TestNewReturnsErrWhenNoTransportsConfigured(t *testing.T) {
	_, err := New(&config.Config{}, zap.NewNop())
	require.ErrorIs(t, err, ErrNoTransportsConfigured)
}

func TestPublisherSignsWebhookPayload(t *testing.T) {
	const secret = "shh"
	received := make(chan struct{}, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		h := hmac.New(sha256.New, []byte(secret))
		h.Write(body)
		want := fmt.Sprintf("sha256=%x", h.Sum(nil))

		require.Equal(t, want, r.Header.Get("X-Webhook-Signature"))
		require.Equal(t, string(KindIngestionProgress), r.Header.Get("X-Webhook-Event"))

		var ev Event
		require.NoError(t, json.Unmarshal(body, &ev))
		require.Equal(t, "run-1", ev.RunID)

		w.WriteHeader(http.StatusOK)
		received <- struct{}{}
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.Events.WebhookURL = server.URL
	cfg.Events.WebhookSecret = secret

	p, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	p.Progress(context.Background(), "run-1", "query", 1, 1, 5)

	select {
	case <-received:
	default:
		t.Fatal("webhook endpoint was never called")
	}
}

func TestPublisherToleratesUnreachableWebhook(t *testing.T) {
	cfg := &config.Config{}
	cfg.Events.WebhookURL = "http://127.0.0.1:1"

	p, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	require.NotPanics(t, func() {
		p.Complete(context.Background(), "run-1", 10, 0, false, false)
	})
}

func TestNewReturnsUsablePublisherWhenNATSConnectFails(t *testing.T) {
	cfg := &config.Config{}
	cfg.Events.NATSURL = "nats://127.0.0.1:1"

	p, err := New(cfg, zap.NewNop())
	require.Error(t, err)
	require.NotNil(t, p)
	defer p.Close()

	require.NotPanics(t, func() {
		p.Progress(context.Background(), "run-1", "query", 1, 1, 1)
	})
}
