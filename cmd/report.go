package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/healthagent/internal/report"
)

var (
	reportOutput  string
	reportHistory int
	reportFormat  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a health report for a user",
	Long:  `Renders the latest measurements, history, preferences and the latest recommendation of --user as markdown or a standalone HTML page.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		g := report.NewGenerator(a.store, reportHistory)

		var out []byte
		switch reportFormat {
		case "html":
			out, err = g.HTML(cmd.Context(), userID)
		case "markdown", "md":
			var md string
			md, err = g.Markdown(cmd.Context(), userID)
			out = []byte(md)
		default:
			return fmt.Errorf("unknown format %q (valid: html, markdown)", reportFormat)
		}
		if err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}

		if reportOutput == "" || reportOutput == "-" {
			_, err = os.Stdout.Write(out)
			return err
		}
		if err := os.WriteFile(reportOutput, out, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", reportOutput)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "output file (default stdout)")
	reportCmd.Flags().IntVar(&reportHistory, "history", report.DefaultHistory, "number of measurements in the history table")
	reportCmd.Flags().StringVar(&reportFormat, "format", "html", "output format: html or markdown")
	rootCmd.AddCommand(reportCmd)
}
