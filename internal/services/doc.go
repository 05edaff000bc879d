// Package services implements the business logic layer of pkoinsight. It sits
// between the HTTP and WebSocket handlers and the session store, so handlers
// only parse requests and render results.
//
// # Available Services
//
//   - DashboardService: overview, mission table, range views, category counts,
//     histograms, diagnostics and exports for one session
//   - HealthService: liveness, readiness and version information
//
// # Error Handling
//
// Services return *errors.AppError values that the HTTP layer maps to RFC 7807
// problem responses:
//
//   - ErrTypeSourceUnavailable when a dataset can not be fetched
//   - ErrTypeInvalidRange when a view starts after it ends
//   - ErrTypeValidation for malformed parameters
//   - ErrTypeNotFound for unknown sessions and missions
//
// Undefined statistics are not errors. They are reported as "not available".
package services
