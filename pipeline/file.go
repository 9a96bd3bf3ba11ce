package pipeline

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is the pipeline definition looked up in the project directory.
const DefaultFile = "pipeline.toml"

const (
	GroupBuild        = "build"
	GroupVerification = "verification"
	GroupDocker       = "docker"
)

// Default returns the built-in pipeline for this repository.
func Default(dir string) *Project {
	p := NewProject(dir)
	p.MustRegister(
		Task{
			Name:        "assemble",
			Description: "Compiles every package.",
			Group:       GroupBuild,
			Command:     []string{"go", "build", "./..."},
		},
		Task{
			Name:        "test",
			Description: "Runs the unit tests.",
			Group:       GroupVerification,
			Command:     []string{"go", "test", "./..."},
		},
		Task{
			Name:        "check",
			Description: "Runs all checks.",
			Group:       GroupVerification,
			DependsOn:   []string{"test"},
		},
		Task{
			Name:        "build",
			Description: "Assembles and tests the project.",
			Group:       GroupBuild,
			DependsOn:   []string{"assemble", "check"},
		},
		Task{
			Name:         "buildImage",
			Description:  "Builds the service image.",
			Group:        GroupDocker,
			DependsOn:    []string{"assemble"},
			MustRunAfter: []string{"test"},
			Command:      []string{"docker", "build", "-t", "martin/eventsource", "."},
		},
		Task{
			Name:        "startServices",
			Description: "Starts Kafka and the service.",
			Group:       GroupDocker,
			DependsOn:   []string{"buildImage"},
			Command:     []string{"docker-compose", "up", "-d"},
			PropertyEnv: map[string]string{"LISTENER_HOST": "kafka.host"},
		},
		Task{
			Name:        "stopServices",
			Description: "Stops Kafka and the service.",
			Group:       GroupDocker,
			Command:     []string{"docker-compose", "down"},
		},
		Task{
			Name:         "integrationTest",
			Description:  "Runs the end-to-end suite against the running services.",
			Group:        GroupVerification,
			DependsOn:    []string{"startServices"},
			MustRunAfter: []string{"test"},
			FinalizedBy:  []string{"stopServices"},
			Command:      []string{"go", "test", "-count=1", "-parallel", "100", "./integration/..."},
			Env:          map[string]string{"EVENTSOURCE_IT": "1"},
			PropertyEnv: map[string]string{
				"EVENTSOURCE_HOST": "eventsource.host",
				"KAFKA_HOST":       "kafka.host",
			},
		},
	)
	return p
}

type fileTask struct {
	Description  string            `toml:"description"`
	Group        string            `toml:"group"`
	DependsOn    []string          `toml:"depends_on"`
	MustRunAfter []string          `toml:"must_run_after"`
	FinalizedBy  []string          `toml:"finalized_by"`
	Command      []string          `toml:"command"`
	Dir          string            `toml:"dir"`
	Env          map[string]string `toml:"env"`
	PropertyEnv  map[string]string `toml:"property_env"`
}

type fileConfig struct {
	Properties map[string]string   `toml:"properties"`
	Tasks      map[string]fileTask `toml:"tasks"`
}

// LoadFile reads a pipeline definition. Relative task directories resolve
// against dir.
func LoadFile(path, dir string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Parse(f, dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a TOML pipeline definition and validates the task graph.
func Parse(r io.Reader, dir string) (*Project, error) {
	var cfg fileConfig
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Tasks) == 0 {
		return nil, invalidf("no tasks defined")
	}
	p := NewProject(dir)
	for k, v := range cfg.Properties {
		p.SetProperty(k, v)
	}
	names := make([]string, 0, len(cfg.Tasks))
	for n := range cfg.Tasks {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		ft := cfg.Tasks[n]
		if err := p.Register(Task{
			Name:         n,
			Description:  ft.Description,
			Group:        ft.Group,
			DependsOn:    ft.DependsOn,
			MustRunAfter: ft.MustRunAfter,
			FinalizedBy:  ft.FinalizedBy,
			Command:      ft.Command,
			Dir:          ft.Dir,
			Env:          ft.Env,
			PropertyEnv:  ft.PropertyEnv,
		}); err != nil {
			return nil, err
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
