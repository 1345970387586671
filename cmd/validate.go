package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalnine/pantheon/internal/config"
	"github.com/signalnine/pantheon/internal/runner"
)

func newValidateCmd() *cobra.Command {
	var casesPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the config and test case files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Config OK: %d models, %d judges, tasks: %v\n",
				len(cfg.Models), len(cfg.JudgeModels), cfg.Tasks)

			cases, err := runner.LoadTestCases(casesPath)
			if err != nil {
				return err
			}
			if len(cases) == 0 {
				return fmt.Errorf("no usable test cases in %s", casesPath)
			}
			fmt.Printf("Test cases OK: %d usable\n", len(cases))
			for _, tc := range cases {
				fmt.Printf("  - %s [%s/%s] %d chars\n", tc.ID, tc.Topic, tc.Format, len(tc.Text))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&casesPath, "cases", "test_cases.json", "test cases file")
	return cmd
}
