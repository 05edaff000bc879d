// Command pkoinsight serves the peacekeeping mission dashboard API and
// prints one-off reports from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pkoinsight/internal/config"
	"pkoinsight/pkg/contracts"
)

var rootCmd = &cobra.Command{
	Use:           config.AppName,
	Short:         "UN peacekeeping mission analytics",
	Version:       contracts.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(contracts.GetFullVersionString() + "\n")
	rootCmd.AddCommand(serveCmd, newReportCmd())
}

func main() {
	// serve installs its own signal handling; this covers report
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
