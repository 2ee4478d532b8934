// Package monitor defines the core types and interfaces for the scan
// pipeline: monitors, candidate listings, found listings, and scan outcomes.
package monitor
