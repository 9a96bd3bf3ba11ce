package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/callistaenterprise/blog-test-aync-processes/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run <task>...",
	Short: "Run tasks and everything they depend on",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTasks,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	var commands pipeline.CommandRunner = pipeline.ExecRunner{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
	if dryRun {
		commands = pipeline.DryRunner{Out: cmd.OutOrStdout()}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, runErr := (&pipeline.Runner{Project: p, Commands: commands}).Run(ctx, args...)
	if rep != nil {
		for _, name := range rep.Order {
			cmd.Printf("%-16s %s\n", name, rep.Outcomes[name])
		}
	}
	if runErr != nil {
		return fmt.Errorf("build failed: %w", runErr)
	}
	cmd.Println("BUILD SUCCESSFUL")
	return nil
}
