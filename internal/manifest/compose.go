package manifest

import (
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/nholik/wolfpy-pipeline/internal/failure"
)

// Service names in the production topology.
const (
	AppService   = "web"
	CacheService = "redis"
	StoreService = "postgres"
)

const (
	composeFileVersion = "3.8"
	restartPolicy      = "unless-stopped"
	storeVolume        = "postgres_data"
	storeDataDir       = "/var/lib/postgresql/data"
)

// ComposeFile is a docker compose document.
type ComposeFile struct {
	Version  string                    `yaml:"version"`
	Services map[string]ComposeService `yaml:"services"`
	Volumes  map[string]*ComposeVolume `yaml:"volumes,omitempty"`
}

// ComposeService is one entry under services.
type ComposeService struct {
	Image       string   `yaml:"image"`
	Ports       []string `yaml:"ports,omitempty"`
	Environment []string `yaml:"environment,omitempty"`
	Volumes     []string `yaml:"volumes,omitempty"`
	Restart     string   `yaml:"restart,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
}

// ComposeVolume is a named volume. A nil value renders as an empty declaration.
type ComposeVolume struct {
	Driver string `yaml:"driver,omitempty"`
}

// RenderCompose builds the application, cache and relational store services.
// The application always depends on both backing services.
func RenderCompose(c Config) ComposeFile {
	opts := c.Compose
	return ComposeFile{
		Version: composeFileVersion,
		Services: map[string]ComposeService{
			AppService: {
				Image: c.ImageRef(),
				Ports: []string{fmt.Sprintf("%d:%d", opts.PublishPort, c.Port)},
				Environment: appEnvironment(c),
				Restart:     restartPolicy,
				DependsOn: []string{CacheService, StoreService},
			},
			CacheService: {
				Image:   opts.CacheImage,
				Restart: restartPolicy,
			},
			StoreService: {
				Image: opts.StoreImage,
				Environment: []string{
					"POSTGRES_DB=" + opts.DatabaseName,
					"POSTGRES_USER=" + opts.DatabaseUser,
					"POSTGRES_PASSWORD=${POSTGRES_PASSWORD}",
				},
				Volumes: []string{storeVolume + ":" + storeDataDir},
				Restart: restartPolicy,
			},
		},
		Volumes: map[string]*ComposeVolume{storeVolume: nil},
	}
}

// appEnvironment is the container environment as NAME=value entries. DEBUG is
// forced off unless the configuration sets it.
func appEnvironment(c Config) []string {
	var env []string
	debug := false
	for _, v := range c.ContainerEnv() {
		if v.Name == "DEBUG" {
			debug = true
		}
		env = append(env, v.Name+"="+v.Value)
	}
	if !debug {
		env = append(env, "DEBUG=False")
	}
	return env
}

// ValidatePorts checks every published port mapping in f.
func ValidatePorts(f ComposeFile) error {
	var problems []string
	for name, svc := range f.Services {
		for _, spec := range svc.Ports {
			if err := ValidatePortMapping(spec); err != nil {
				problems = append(problems, fmt.Sprintf("service %s: %v", name, err))
			}
		}
	}
	if len(problems) > 0 {
		return failure.Validation(problems...)
	}
	return nil
}

// ValidatePortMapping accepts a docker style host:container port mapping.
func ValidatePortMapping(spec string) error {
	mappings, err := nat.ParsePortSpec(spec)
	if err != nil {
		return fmt.Errorf("invalid port mapping %q: %w", spec, err)
	}
	if len(mappings) == 0 {
		return fmt.Errorf("invalid port mapping %q", spec)
	}
	return nil
}
