package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// PKOCSV is a small dataset in the published column layout. UNMIK is
// ongoing and carries a comma decimal latitude.
const PKOCSV = "mission_acronym,mission_name,start_date,end_date,mission_isactive,mission_location,mission_latitude,mission_longitude,lead_department\n" +
	"UNMIK,UN Interim Administration Mission in Kosovo,1999-06-10,,Yes,Kosovo,\"42,662\",21.165,DPO\n" +
	"UNOMIG,UN Observer Mission in Georgia,1993-08-24,2009-06-15,No,Georgia,42.3,43.36,DPO\n" +
	"MINUSMA,UN Stabilization Mission in Mali,2013-04-25,2023-12-31,No,Mali,17.57,-3.99,DPO\n"

// ServeCSV starts a server answering every request with body as text/csv.
// It is closed when the test ends.
func ServeCSV(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}
