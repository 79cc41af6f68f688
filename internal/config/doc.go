// Package config loads and validates the shaping configuration consumed by
// the Bakery: interface names, link bandwidth, on-a-stick mode, lazy queue
// mode, monitor-only mode, and the SQM leaf-qdisc template.
package config
