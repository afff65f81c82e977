package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/healthagent/internal/progress"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import body measurements from a CSV file",
	Long: `Imports health metrics for --user from a CSV file with the header columns
weight_kg, body_fat_percent, bmi, muscle_percent, water_percent and optional
recorded_at and note. Invalid rows are skipped and listed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()

		res, err := a.store.ImportCSV(cmd.Context(), userID, f, progress.NewReporter("Importing metrics"))
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d metrics, skipped %d rows.\n", res.Imported, res.Skipped)
		for _, e := range res.Errors {
			fmt.Printf("  %v\n", e)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
