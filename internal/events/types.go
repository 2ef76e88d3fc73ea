// Copyright 2025 James Ross
package events

import "time"

// Kind identifies the sort of event being published.
type Kind string

const (
	// KindIngestionProgress mirrors an ingest.Progress snapshot.
	KindIngestionProgress Kind = "ingestion.progress"
	// KindIngestionComplete fires once a Run finishes, degraded or not.
	KindIngestionComplete Kind = "ingestion.complete"
	// KindSLABreach fires when a calculated metric crosses a configured
	// threshold (e.g. cycle time p85 over the SLA target).
	KindSLABreach Kind = "alert.sla_breach"
)

// Event is the envelope published to both NATS subjects and webhook
// endpoints. Subject and signature are computed per transport, not stored
// here.
type Event struct {
	Kind      Kind        `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	RunID     string      `json:"run_id"`
	Payload   interface{} `json:"payload,omitempty"`
}

// ProgressPayload carries an ingestion phase snapshot.
type ProgressPayload struct {
	Phase string `json:"phase"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
	Items int    `json:"items"`
}

// CompletePayload summarizes a finished ingestion run.
type CompletePayload struct {
	ItemCount        int  `json:"item_count"`
	ValidationErrors int  `json:"validation_errors"`
	Degraded         bool `json:"degraded"`
	Cancelled        bool `json:"cancelled"`
}

// SLABreachPayload describes which metric crossed which threshold.
type SLABreachPayload struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Scope     string  `json:"scope,omitempty"`
}
