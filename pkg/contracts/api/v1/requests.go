// Package api contains the request contracts of the pkoinsight HTTP API.
// Version v1 represents the current stable API version.
package api

// Session API Requests

// OpenSessionRequest loads a dataset into a new session. An empty Source
// uses the configured default.
type OpenSessionRequest struct {
	Source string `json:"source,omitempty" validate:"omitempty,max=2048,source"`
}

// View API Requests

// ViewRequest selects the missions active in a date range. Empty dates
// default to the dataset's own bounds; an empty mission means "All".
type ViewRequest struct {
	Start   string `json:"start" query:"start" validate:"omitempty,datetime=2006-01-02"`
	End     string `json:"end" query:"end" validate:"omitempty,datetime=2006-01-02"`
	Mission string `json:"mission" query:"mission" validate:"omitempty,max=64,mission"`
}

// CountsRequest asks for category counts of one column.
type CountsRequest struct {
	Field string `json:"field" param:"field" validate:"required,category"`
	Limit int    `json:"limit" query:"limit" validate:"omitempty,min=1,max=1000"`
}

// HistogramRequest asks for the duration histogram.
type HistogramRequest struct {
	Bins int `json:"bins" query:"bins" validate:"omitempty,min=1,max=200"`
}

// ExportRequest selects the view to export and the file format.
type ExportRequest struct {
	ViewRequest
	Format string `json:"format" param:"format" validate:"required,oneof=csv xlsx"`
}
