// Package manifest renders the deployment descriptors for a WolfPy application:
// cluster manifests, the production compose topology, the environment template
// and the platform files a PaaS push needs. Every render is a pure function of
// its Config.
package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nholik/wolfpy-pipeline/internal/failure"
)

// EnvVar is a single NAME=value pair passed to the application container.
type EnvVar struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Config fully determines every rendered descriptor.
type Config struct {
	AppName     string
	Image       string
	Tag         string
	Replicas    int
	Port        int
	ServicePort int
	Environment string
	Env         []EnvVar

	Host          string
	TLSSecret     string
	IngressClass  string
	ClusterIssuer string

	Compose ComposeOptions
}

// ComposeOptions parameterizes the three-service production topology.
type ComposeOptions struct {
	PublishPort  int
	CacheImage   string
	StoreImage   string
	DatabaseName string
	DatabaseUser string
}

// DefaultConfig mirrors the stock WolfPy deployment.
func DefaultConfig() Config {
	return Config{
		AppName:       "wolfpy-app",
		Image:         "wolfpy-app",
		Tag:           "latest",
		Replicas:      3,
		Port:          8000,
		ServicePort:   80,
		Environment:   "production",
		Host:          "your-domain.com",
		TLSSecret:     "wolfpy-tls",
		IngressClass:  "nginx",
		ClusterIssuer: "letsencrypt-prod",
		Compose: ComposeOptions{
			PublishPort:  80,
			CacheImage:   "redis:7-alpine",
			StoreImage:   "postgres:15-alpine",
			DatabaseName: "wolfpy",
			DatabaseUser: "wolfpy",
		},
	}
}

// ImageRef returns image:tag.
func (c Config) ImageRef() string {
	return c.Image + ":" + c.Tag
}

// ServiceName is the name of the generated cluster service.
func (c Config) ServiceName() string {
	return strings.TrimSuffix(c.AppName, "-app") + "-service"
}

// IngressName is the name of the generated ingress.
func (c Config) IngressName() string {
	return strings.TrimSuffix(c.AppName, "-app") + "-ingress"
}

// ContainerEnv returns the environment injected into the application
// container: the environment name and listening port first, then Env.
func (c Config) ContainerEnv() []EnvVar {
	env := []EnvVar{
		{Name: "WOLFPY_ENV", Value: c.Environment},
		{Name: "PORT", Value: strconv.Itoa(c.Port)},
	}
	for _, v := range c.Env {
		if v.Name == "WOLFPY_ENV" || v.Name == "PORT" {
			continue
		}
		env = append(env, v)
	}
	return env
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.AppName) == "" {
		problems = append(problems, "app name is required")
	}
	if strings.TrimSpace(c.Image) == "" {
		problems = append(problems, "image is required")
	}
	if strings.TrimSpace(c.Tag) == "" {
		problems = append(problems, "tag is required")
	}
	if c.Replicas < 1 {
		problems = append(problems, fmt.Sprintf("replicas must be at least 1, got %d", c.Replicas))
	}
	if !validPort(c.Port) {
		problems = append(problems, fmt.Sprintf("container port %d is out of range", c.Port))
	}
	if !validPort(c.ServicePort) {
		problems = append(problems, fmt.Sprintf("service port %d is out of range", c.ServicePort))
	}
	for _, v := range c.Env {
		if strings.TrimSpace(v.Name) == "" || strings.ContainsAny(v.Name, "= \t") {
			problems = append(problems, fmt.Sprintf("invalid environment variable name %q", v.Name))
		}
	}
	if len(problems) > 0 {
		return failure.Validation(problems...)
	}
	return nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
