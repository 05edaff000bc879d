// Package dataprocessing turns a raw peacekeeping-operations table into a
// normalized Dataset and computes everything the dashboard shows from it.
//
// # Architecture
//
// The package is a chain of pure stages. None of them keep state between
// calls and none of them modify their inputs:
//
//  1. Normalizer: trims cells, parses dates and coordinates into tagged Fields
//  2. Derive: mission duration in days and start year
//  3. Filter: selects the missions active within a date window
//  4. Analytics: duration statistics, category counts, histograms
//  5. Aggregator: per-mission latitude/longitude summaries for charting
//
// # Usage
//
//	ds, report, err := dataprocessing.NewNormalizer(logger).Normalize(ctx, source, table)
//	if err != nil {
//	    return err
//	}
//	view, err := dataprocessing.Filter(ds, domain.Query{Start: from, End: to, Mission: domain.AllMissions})
//	if err != nil {
//	    return err // ErrInvalidRange when from is after to
//	}
//	stats := dataprocessing.SummarizeDurations(view.Missions())
//	points := dataprocessing.NewAggregator(dataprocessing.FirstValid).Aggregate(view)
//
// # Data Flow
//
//	loader.Table → Normalizer → domain.Dataset → Filter → domain.View → Analytics / Aggregator
//
// # Missing values
//
// A value that is absent or does not parse is never replaced by a zero. It
// travels as a missing domain.Field with a reason, is excluded from every
// statistic, and is counted in the normalization Report.
package dataprocessing
