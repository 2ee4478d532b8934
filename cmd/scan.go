package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracemotorsports/parthawk/internal/app"
)

func newScanCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Runs one scan cycle and prints the summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			defer a.Close()

			summary, err := a.Runner.RunCycle(cmd.Context(), force)
			if err != nil {
				return fmt.Errorf("run scan cycle: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "scan every monitor regardless of interval")
	return cmd
}
