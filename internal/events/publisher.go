// Copyright 2025 James Ross

// Package events fans ingestion progress and SLA-breach alerts out to
// whichever transports are configured: an HMAC-signed webhook, a NATS
// JetStream subject, or both. A Publisher with neither transport configured
// is a no-op, so callers can construct one unconditionally and always call
// Publish.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arjaygg/ado-flow-metrics/internal/config"
)

// Publisher fans an Event out to every configured transport. Delivery
// failures are logged, never returned: a missing webhook endpoint or a
// down NATS server must not abort an ingestion run.
type Publisher struct {
	webhook *webhookPublisher
	nats    *natsPublisher
	log     *zap.Logger
}

// New builds a Publisher from the configured event transports. It returns
// ErrNoTransportsConfigured if neither transport is set, or if a configured
// NATS connection could not be established. Either way the returned
// Publisher is never nil: its Publish/Close methods are no-ops with no
// transports attached, so a caller can always `defer pub.Close()` and call
// Publish unconditionally rather than branching on the error.
func New(cfg *config.Config, log *zap.Logger) (*Publisher, error) {
	p := &Publisher{log: log}

	if cfg.Events.WebhookURL != "" {
		p.webhook = newWebhookPublisher(cfg.Events.WebhookURL, cfg.Events.WebhookSecret, log)
	}

	var natsErr error
	if cfg.Events.NATSURL != "" {
		np, err := newNATSPublisher(cfg.Events.NATSURL, log)
		if err != nil {
			natsErr = err
		} else {
			p.nats = np
		}
	}

	if natsErr != nil {
		return p, natsErr
	}
	if p.webhook == nil && p.nats == nil {
		return p, ErrNoTransportsConfigured
	}
	return p, nil
}

// Publish delivers ev to every configured transport, logging rather than
// returning per-transport failures.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p.webhook != nil {
		if err := p.webhook.publish(ctx, ev); err != nil {
			p.log.Warn("webhook publish failed", zap.String("event", string(ev.Kind)), zap.Error(err))
		}
	}
	if p.nats != nil {
		if err := p.nats.publish(ev); err != nil {
			p.log.Warn("nats publish failed", zap.String("event", string(ev.Kind)), zap.Error(err))
		}
	}
}

// Progress publishes an ingestion phase snapshot.
func (p *Publisher) Progress(ctx context.Context, runID string, phase string, done, total, items int) {
	p.Publish(ctx, Event{
		Kind:      KindIngestionProgress,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Payload:   ProgressPayload{Phase: phase, Done: done, Total: total, Items: items},
	})
}

// Complete publishes an ingestion-run summary.
func (p *Publisher) Complete(ctx context.Context, runID string, itemCount, validationErrors int, degraded, cancelled bool) {
	p.Publish(ctx, Event{
		Kind:      KindIngestionComplete,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Payload: CompletePayload{
			ItemCount:        itemCount,
			ValidationErrors: validationErrors,
			Degraded:         degraded,
			Cancelled:        cancelled,
		},
	})
}

// SLABreach publishes a threshold-breach alert for a single metric.
func (p *Publisher) SLABreach(ctx context.Context, runID, metric, scope string, value, threshold float64) {
	p.Publish(ctx, Event{
		Kind:      KindSLABreach,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Payload:   SLABreachPayload{Metric: metric, Value: value, Threshold: threshold, Scope: scope},
	})
}

// Close releases transport resources (idle HTTP connections, the NATS
// connection). Safe to call on a Publisher that failed to configure any
// transport.
func (p *Publisher) Close() error {
	if p.webhook != nil {
		_ = p.webhook.close()
	}
	if p.nats != nil {
		_ = p.nats.close()
	}
	return nil
}
