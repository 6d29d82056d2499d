// Package config defines the explicit configuration passed through a
// maintenance session.
//
// A [Config] is assembled in layers: [Defaults], then an optional YAML file
// via [LoadFile], then CLI flags applied by the command layer. Internal poll
// intervals and settle pauses live in [Timings] and are tuned through
// NODECYCLE_* environment variables (see [LoadTimings]). [Config.Validate]
// enforces the numeric floors before anything touches the cluster.
package config
