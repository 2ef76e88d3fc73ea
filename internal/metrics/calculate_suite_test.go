// Copyright 2025 James Ross
package metrics

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMetricsCalculator(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Flow Metrics Calculator Suite")
}
