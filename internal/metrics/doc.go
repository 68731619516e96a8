// Package metrics holds arcbot's Prometheus collectors and the optional
// /metrics HTTP endpoint.
package metrics
