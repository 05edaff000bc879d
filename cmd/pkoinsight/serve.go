package main

import (
	"github.com/spf13/cobra"

	"pkoinsight/internal/app"
	"pkoinsight/internal/infrastructure"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer infrastructure.CloseLogFile()

		a, err := app.NewApplication()
		if err != nil {
			return err
		}
		return a.Run()
	},
}
