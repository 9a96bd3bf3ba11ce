package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the available tasks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		group := ""
		for i, t := range p.Tasks() {
			if i == 0 || t.Group != group {
				group = t.Group
				if i > 0 {
					cmd.Println()
				}
				title := group
				if title == "" {
					title = "other"
				}
				cmd.Println(strings.ToUpper(title[:1]) + title[1:] + " tasks")
				cmd.Println(strings.Repeat("-", len(title)+6))
			}
			cmd.Printf("%s - %s\n", t.Name, t.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
