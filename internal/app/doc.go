// Package app wires the pkoinsight server together and manages its lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration (defaults, then config.yaml, then PKO_* variables)
//  2. Initialize logging and OpenTelemetry
//  3. Create the dataset loader and the session manager
//  4. Create the dashboard and health services
//  5. Set up HTTP handlers, the WebSocket endpoint and middleware
//  6. Start the session sweeper, the WebSocket hub and the HTTP server
//
// # Usage
//
//	a, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return a.Run()
//
// # Graceful Shutdown
//
// Run waits for SIGINT or SIGTERM, then Stop drains HTTP requests,
// disconnects WebSocket clients, drops every session and flushes telemetry.
// Initialization errors are returned to the caller; the package never calls
// os.Exit.
package app
