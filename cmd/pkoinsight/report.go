package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pkoinsight/internal/config"
	"pkoinsight/internal/dataprocessing"
	"pkoinsight/internal/exporter"
	"pkoinsight/internal/infrastructure"
	"pkoinsight/internal/loader"
	"pkoinsight/internal/services"
	"pkoinsight/internal/session"
	api "pkoinsight/pkg/contracts/api/v1"
	"pkoinsight/pkg/contracts/domain"
)

type reportOptions struct {
	source  string
	start   string
	end     string
	mission string
	csvPath string
	xlsx    string
}

func newReportCmd() *cobra.Command {
	var opts reportOptions
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Load the dataset once and print the mission summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.source != "" {
				if err := config.ValidateSource(opts.source); err != nil {
					return err
				}
				cfg.Source.URL = opts.source
			}

			// keep stdout for the report itself
			cfg.Logging.Output = "stdout"
			logger, err := infrastructure.NewLogger(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return runReport(cmd.Context(), cfg, opts, cmd.OutOrStdout(), logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.source, "source", "", "dataset URL or file (defaults to the configured source)")
	f.StringVar(&opts.start, "start", "", "window start, YYYY-MM-DD (defaults to the earliest start date)")
	f.StringVar(&opts.end, "end", "", "window end, YYYY-MM-DD (defaults to the latest end date)")
	f.StringVar(&opts.mission, "mission", domain.AllMissions, "mission acronym or All")
	f.StringVar(&opts.csvPath, "csv", "", "write the selected missions as CSV to this file")
	f.StringVar(&opts.xlsx, "xlsx", "", "write the full workbook to this file")
	return cmd
}

func runReport(ctx context.Context, cfg *config.Config, opts reportOptions, out io.Writer, logger *slog.Logger) error {
	l := loader.New(loader.Options{
		Timeout:   cfg.Source.Timeout,
		MaxBytes:  cfg.Source.MaxBytes,
		UserAgent: cfg.Source.UserAgent,
	}, logger)
	manager := session.NewManager(l, session.Options{
		DefaultSource: cfg.Source.URL,
		TTL:           cfg.Session.TTL,
		MaxSessions:   1,
		LoadTimeout:   cfg.Source.Timeout,
	}, nil, logger)
	defer manager.CloseAll(ctx)

	analysis, err := services.AnalysisOptionsFrom(cfg.Analysis, cfg.Source)
	if err != nil {
		return err
	}
	// the command line reads whatever the operator points it at
	analysis.AllowLocalSources = true
	svc := services.NewDashboardService(manager, analysis, nil, logger)

	opened, err := svc.OpenSession(ctx, api.OpenSessionRequest{Source: cfg.Source.URL})
	if err != nil {
		return err
	}
	id := opened.Session.ID

	overview, err := svc.Overview(ctx, id)
	if err != nil {
		return err
	}
	req := api.ViewRequest{Start: opts.start, End: opts.end, Mission: opts.mission}
	view, err := svc.View(ctx, id, req)
	if err != nil {
		return err
	}

	printReport(out, opened, overview, view)

	if opts.csvPath == "" && opts.xlsx == "" {
		return nil
	}

	// relative file names land in the exports directory
	paths, err := cfg.GetPaths()
	if err != nil {
		return err
	}
	bundle, err := svc.Bundle(ctx, id, req)
	if err != nil {
		return err
	}
	if opts.csvPath != "" {
		headers, records := exporter.MissionTable(bundle.View)
		written, err := exporter.NewCSVWriter(paths, logger).WriteFile(opts.csvPath, exporter.WriteOptions{
			Headers:   headers,
			Records:   records,
			BOMPrefix: true,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nWrote %s\n", written)
	}
	if opts.xlsx != "" {
		written, err := exporter.NewXLSXWriter(paths, logger).WriteFile(opts.xlsx, *bundle)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nWrote %s\n", written)
	}
	return nil
}

func printReport(out io.Writer, opened *services.SessionResult, o *services.Overview, v *services.ViewResult) {
	fmt.Fprintf(out, "Source: %s\n", opened.Session.Source)
	fmt.Fprintf(out, "Rows: %d", opened.Session.Rows)
	if n := len(opened.Report.MalformedLastUpdate); n > 0 {
		fmt.Fprintf(out, " (%d malformed last_update values)", n)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "\nOverview")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Total missions\t%s\n", o.Display.TotalMissions)
	fmt.Fprintf(tw, "  Active missions\t%s\n", o.Display.ActiveMissions)
	fmt.Fprintf(tw, "  Inactive missions\t%s\n", o.Display.InactiveMissions)
	fmt.Fprintf(tw, "  Average duration\t%s\n", o.Display.Durations.Average)
	fmt.Fprintf(tw, "  Median duration\t%s\n", o.Display.Durations.Median)
	fmt.Fprintf(tw, "  Longest mission\t%s\n", o.Display.Durations.Longest)
	fmt.Fprintf(tw, "  Shortest mission\t%s\n", o.Display.Durations.Shortest)
	tw.Flush()

	if len(o.Insights) > 0 {
		fmt.Fprintln(out)
		for _, line := range o.Insights {
			fmt.Fprintln(out, line)
		}
	}

	fmt.Fprintf(out, "\n%s\n", v.ChartTitle)
	fmt.Fprintf(out, "Missions in range: %d\n", v.Count)
	fmt.Fprintf(out, "Average duration: %s, median: %s\n", v.Display.Average, v.Display.Median)
	if len(v.Locations) == 0 {
		return
	}

	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ACRONYM\tLATITUDE\tMEAN LONGITUDE\tRATIO")
	for _, loc := range v.Locations {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", loc.Acronym,
			formatFloat(loc.FirstLatitude), formatFloat(loc.MeanLongitude), formatFloat(loc.Ratio))
	}
	tw.Flush()
	if v.RatioAxis.Available {
		fmt.Fprintf(out, "Ratio axis: %.2f to %.2f\n", v.RatioAxis.Min, v.RatioAxis.Max)
	}
}

func formatFloat(f domain.Field[float64]) string {
	if v, ok := f.Get(); ok {
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
	}
	return dataprocessing.NotAvailable
}
