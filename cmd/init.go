package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/healthagent/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize healthagent configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the assistant and generates a .healthagent.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
