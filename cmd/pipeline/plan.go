package main

import (
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <task>...",
	Short: "Print the execution order without running anything",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		order, err := p.Plan(args...)
		if err != nil {
			return err
		}
		for _, name := range order {
			cmd.Println(name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
