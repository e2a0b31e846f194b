package cmd

import "github.com/spf13/cobra"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP assignment service",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
