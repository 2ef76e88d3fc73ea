// Copyright 2025 James Ross
package events

import "errors"

var (
	// ErrNoTransportsConfigured is returned by New when neither a webhook
	// URL nor a NATS URL was supplied; publishing would be a silent no-op.
	ErrNoTransportsConfigured = errors.New("events: no webhook or NATS transport configured")
)
