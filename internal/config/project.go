package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nholik/wolfpy-pipeline/internal/failure"
	"github.com/nholik/wolfpy-pipeline/internal/manifest"
	"gopkg.in/yaml.v3"
)

// Project is the wolfpy.yaml settings file. Keys left out keep their defaults.
//
//	package: wolfpy
//	image: wolfpy-app
//	tag: latest
//	registry: ghcr.io/acme
//	container_port: 8000
//	replicas: 3
//	host: app.example.com
type Project struct {
	Package       string            `yaml:"package"`
	Image         string            `yaml:"image"`
	Tag           string            `yaml:"tag"`
	Registry      string            `yaml:"registry,omitempty"`
	ContainerPort int               `yaml:"container_port"`
	Replicas      int               `yaml:"replicas"`
	Host          string            `yaml:"host"`
	Environment   string            `yaml:"environment"`
	Env           []manifest.EnvVar `yaml:"env,omitempty"`
	GitRemote     string            `yaml:"git_remote"`
	HerokuRemote  string            `yaml:"heroku_remote"`
	HerokuBranch  string            `yaml:"heroku_branch"`
	PythonRuntime string            `yaml:"python_runtime"`
	ManifestsDir  string            `yaml:"manifests_dir"`
	Compose       *ComposeSettings  `yaml:"compose,omitempty"`
}

// ComposeSettings overrides the production compose topology.
type ComposeSettings struct {
	PublishPort  int    `yaml:"publish_port,omitempty"`
	CacheImage   string `yaml:"cache_image,omitempty"`
	StoreImage   string `yaml:"store_image,omitempty"`
	DatabaseName string `yaml:"database_name,omitempty"`
	DatabaseUser string `yaml:"database_user,omitempty"`
}

// DefaultProject carries the stock WolfPy settings.
func DefaultProject() Project {
	return Project{
		Package:       "wolfpy",
		Image:         "wolfpy-app",
		Tag:           "latest",
		ContainerPort: 8000,
		Replicas:      3,
		Host:          "your-domain.com",
		Environment:   "production",
		GitRemote:     "origin",
		HerokuRemote:  "heroku",
		HerokuBranch:  "main",
		PythonRuntime: "python-3.11.6",
		ManifestsDir:  "k8s",
	}
}

// LoadProject parses the settings file at path. A missing file yields the defaults.
func LoadProject(path string) (Project, error) {
	project := DefaultProject()
	if path == "" {
		return project, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return project, nil
		}
		return Project{}, fmt.Errorf("read settings file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&project); err != nil && !errors.Is(err, io.EOF) {
		return Project{}, &failure.ConfigError{Field: filepath.Base(path), Reason: err.Error()}
	}

	if err := project.Validate(); err != nil {
		return Project{}, err
	}
	return project, nil
}

// Validate rejects settings no workflow can run with.
func (p Project) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Package) == "" {
		problems = append(problems, "package is required")
	}
	if strings.ContainsAny(p.Package, `/\ `) {
		problems = append(problems, fmt.Sprintf("package %q must be a bare module name", p.Package))
	}
	if strings.TrimSpace(p.HerokuBranch) == "" {
		problems = append(problems, "heroku_branch is required")
	}
	if strings.TrimSpace(p.GitRemote) == "" {
		problems = append(problems, "git_remote is required")
	}
	if filepath.IsAbs(p.ManifestsDir) || strings.HasPrefix(filepath.Clean(p.ManifestsDir), "..") {
		problems = append(problems, fmt.Sprintf("manifests_dir %q must stay inside the project", p.ManifestsDir))
	}
	if len(problems) > 0 {
		return failure.Validation(problems...)
	}
	return p.ManifestConfig().Validate()
}

// ManifestConfig converts the settings into the descriptor renderer's input.
func (p Project) ManifestConfig() manifest.Config {
	cfg := manifest.DefaultConfig()
	cfg.AppName = p.Image
	cfg.Image = p.Image
	cfg.Tag = p.Tag
	cfg.Replicas = p.Replicas
	cfg.Port = p.ContainerPort
	cfg.Host = p.Host
	cfg.Environment = p.Environment
	cfg.Env = p.Env

	if c := p.Compose; c != nil {
		if c.PublishPort != 0 {
			cfg.Compose.PublishPort = c.PublishPort
		}
		if c.CacheImage != "" {
			cfg.Compose.CacheImage = c.CacheImage
		}
		if c.StoreImage != "" {
			cfg.Compose.StoreImage = c.StoreImage
		}
		if c.DatabaseName != "" {
			cfg.Compose.DatabaseName = c.DatabaseName
		}
		if c.DatabaseUser != "" {
			cfg.Compose.DatabaseUser = c.DatabaseUser
		}
	}
	return cfg
}
