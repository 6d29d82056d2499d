// Package testing provides test utilities, builders, fixtures and mocks for
// unit tests.
//
// This package centralizes common testing patterns to avoid duplication
// across test files:
//   - ConfigBuilder: Fluent builder for session configurations
//   - Node, Pod, LonghornVolume, ArgoApplication: cluster object fixtures
//   - NewDynamicClient: fake dynamic client aware of the Longhorn and Argo CD kinds
//   - MockUnitManager, MockPowerManager, MockPrompter: shared testify mocks
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithNode("node-1").
//	    WithRole(config.RoleWorker).
//	    Build()
//
//	dyn := testing.NewDynamicClient(testing.LonghornVolume("pvc-1", "attached", "node-1"))
package testing
