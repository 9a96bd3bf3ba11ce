package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/callistaenterprise/blog-test-aync-processes/pipeline"
)

var (
	pipelineFile string
	projectDir   string
	properties   []string
	dryRun       bool
)

var rootCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Build, package and end-to-end test the eventsource service",
	Long: `Runs the project task graph: compile, unit test, build the image,
start Kafka and the service with docker-compose, run the end-to-end suite
and always stop the services again.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&pipelineFile, "file", "f", "", "pipeline definition (default: <dir>/"+pipeline.DefaultFile+", else built-in)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "project directory")
	rootCmd.PersistentFlags().StringArrayVarP(&properties, "property", "P", nil, "project property key=value, e.g. -P kafka.host=10.0.0.5")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "print commands instead of running them")
}

// loadProject resolves the pipeline definition and applies -P properties.
func loadProject() (*pipeline.Project, error) {
	dir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, err
	}

	var p *pipeline.Project
	switch {
	case pipelineFile != "":
		p, err = pipeline.LoadFile(pipelineFile, dir)
	default:
		candidate := filepath.Join(dir, pipeline.DefaultFile)
		if _, statErr := os.Stat(candidate); statErr == nil {
			p, err = pipeline.LoadFile(candidate, dir)
		} else if errors.Is(statErr, os.ErrNotExist) {
			p = pipeline.Default(dir)
		} else {
			err = statErr
		}
	}
	if err != nil {
		return nil, err
	}

	for _, kv := range properties {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q, want key=value", kv)
		}
		p.SetProperty(key, value)
	}
	return p, nil
}
