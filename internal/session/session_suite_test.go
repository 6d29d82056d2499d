package session

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// TestSessionScenarios runs the end-to-end session scenarios against fake
// clients.
func TestSessionScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Session Scenario Suite")
}
