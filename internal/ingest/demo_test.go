// Copyright 2025 James Ross
package ingest

import (
	"testing"

	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/stretchr/testify/require"
)

func TestDemoSourceGeneratesRequestedCount(t *testing.T) {
	d := NewDemoSource(42)
	items := d.Generate(50, 90, flowconfig.DefaultStateConfiguration())
	require.Len(t, items, 50)
	for _, item := range items {
		require.NotEmpty(t, item.Transitions)
		for i := 0; i < len(item.Transitions)-1; i++ {
			require.False(t, item.Transitions[i].Open(), "only the last transition may be open")
		}
	}
}

func TestDemoSourceIsDeterministicForSameSeed(t *testing.T) {
	a := NewDemoSource(7).Generate(20, 60, flowconfig.DefaultStateConfiguration())
	b := NewDemoSource(7).Generate(20, 60, flowconfig.DefaultStateConfiguration())
	require.Equal(t, a, b)
}
