// Package server provides the HTTP server for the meter dashboard and API.
//
// This package handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: JSON endpoints under "/api" for values, sensors and stats
//   - Server-Sent Events: Real-time value updates at "/api/sse"
//
// Routing uses chi. The server supports graceful shutdown via context
// cancellation, with a 5-second timeout for in-flight requests.
//
// The server is started by [smartmeter.Meter.ServeDashboard].
package server
