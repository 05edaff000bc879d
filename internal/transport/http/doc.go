// Package http implements the JSON API of pkoinsight on a chi router.
//
// Handlers stay thin: they bind and validate query parameters into the
// request contracts of pkg/contracts/api/v1, call the dashboard service, and
// wrap results in a {"status":"success","data":...} envelope. Every error goes
// through errors.ErrorHandler and leaves as an RFC 7807 problem:
//
//	InvalidRange           400 /errors/invalid-range
//	validation             400 /errors/validation
//	unknown session        404 /errors/not-found
//	SourceUnavailable      502 /errors/source-unavailable
//	session limit reached  503 /errors/session/limit-reached
//	deadline exceeded      504 /errors/timeout
//
// Routes under /api/sessions:
//
//	POST   /                               open a session ({"source": "..."} optional)
//	GET    /                               list sessions
//	GET    /{id}                           session info and load report
//	DELETE /{id}                           close a session
//	GET    /{id}/overview                  whole-dataset summary
//	GET    /{id}/missions[/{acronym}]      mission table or one mission
//	GET    /{id}/view                      filtered view (start, end, mission)
//	GET    /{id}/counts/{field}            category counts (limit)
//	GET    /{id}/years                     start-year histogram
//	GET    /{id}/durations/histogram       duration histogram (bins)
//	GET    /{id}/diagnostics/malformed-dates
//	GET    /{id}/export.csv|export.xlsx    filtered view as a file
package http
