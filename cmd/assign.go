package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kilianp07/courier-dispatch/core/dispatch"
	"github.com/kilianp07/courier-dispatch/pkg/export"
	"github.com/kilianp07/courier-dispatch/pkg/snapshot"
)

var (
	snapshotPath string
	outputFormat string
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign the orders of a snapshot file and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return assignFile(cmd.OutOrStdout(), cfg.Dispatch, snapshotPath, outputFormat)
	},
}

func init() {
	assignCmd.Flags().StringVarP(&snapshotPath, "file", "f", "", "snapshot file (.yaml, .yml or .json)")
	assignCmd.Flags().StringVar(&outputFormat, "format", "json", "output format: json or csv")
	_ = assignCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(assignCmd)
}

func assignFile(w io.Writer, cfg dispatch.Config, path, format string) error {
	if format != "json" && format != "csv" {
		return fmt.Errorf("unsupported output format %q", format)
	}
	doc, err := snapshot.Load(path)
	if err != nil {
		return err
	}
	engine, err := dispatch.NewEngine(cfg)
	if err != nil {
		return err
	}
	res := engine.Assign(doc.ToModel())
	report := export.NewReport(res.Assignments, res.Skipped)
	if format == "csv" {
		return export.WriteCSV(w, report)
	}
	return export.WriteJSON(w, report)
}
