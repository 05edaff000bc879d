// Package exporter writes mission views as CSV tables and Excel workbooks.
//
// CSVWriter writes a single table with an optional UTF-8 BOM so spreadsheet
// tools detect the encoding. XLSXWriter writes a workbook with one sheet per
// analysis: Summary, Missions, Locations, Departments, Years and Aggregates.
//
// Example usage:
//
//	headers, records := exporter.MissionTable(view)
//	err := exporter.NewCSVWriter(paths, logger).WriteCSV(w, exporter.WriteOptions{
//	    Headers:   headers,
//	    Records:   records,
//	    BOMPrefix: true,
//	})
package exporter
