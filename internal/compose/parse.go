// Package compose validates rendered compose documents by loading them the way
// the compose CLI would.
package compose

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
)

const projectName = "wolfpy"

// Topology is the normalized view of a loaded compose project.
type Topology struct {
	Services map[string]Service
	Volumes  []string
}

// Service captures the fields the production topology depends on.
type Service struct {
	Image     string
	DependsOn []string
	Published []string
}

// Load parses compose content with schema validation on and interpolation off,
// so placeholders such as ${POSTGRES_PASSWORD} survive for deploy time.
func Load(ctx context.Context, body []byte) (Topology, error) {
	if len(body) == 0 {
		return Topology{}, errors.New("compose body is empty")
	}

	details := types.ConfigDetails{
		WorkingDir: ".",
		ConfigFiles: []types.ConfigFile{
			{
				Filename: "docker-compose.prod.yml",
				Content:  body,
			},
		},
		Environment: types.Mapping{},
	}

	project, err := loader.LoadWithContext(ctx, details, func(opts *loader.Options) {
		opts.SetProjectName(projectName, false)
		opts.SkipInterpolation = true
	})
	if err != nil {
		return Topology{}, fmt.Errorf("load compose: %w", err)
	}
	if len(project.Services) == 0 {
		return Topology{}, errors.New("compose has no services")
	}

	topo := Topology{Services: make(map[string]Service, len(project.Services))}
	for name, service := range project.Services {
		if service.Image == "" {
			return Topology{}, fmt.Errorf("service %q missing image", name)
		}
		deps := make([]string, 0, len(service.DependsOn))
		for dep := range service.DependsOn {
			deps = append(deps, dep)
		}
		published := make([]string, 0, len(service.Ports))
		for _, port := range service.Ports {
			published = append(published, fmt.Sprintf("%s:%d", port.Published, port.Target))
		}
		topo.Services[name] = Service{
			Image:     service.Image,
			DependsOn: normalizeNames(deps),
			Published: published,
		}
	}

	volumes := make([]string, 0, len(project.Volumes))
	for name := range project.Volumes {
		volumes = append(volumes, name)
	}
	topo.Volumes = normalizeNames(volumes)

	return topo, nil
}

// Validate loads body and checks that app starts after every service in requires.
func Validate(ctx context.Context, body []byte, app string, requires ...string) (Topology, error) {
	topo, err := Load(ctx, body)
	if err != nil {
		return Topology{}, err
	}

	svc, ok := topo.Services[app]
	if !ok {
		return Topology{}, fmt.Errorf("compose is missing service %q", app)
	}
	for _, dep := range requires {
		if _, ok := topo.Services[dep]; !ok {
			return Topology{}, fmt.Errorf("compose is missing service %q", dep)
		}
		if !contains(svc.DependsOn, dep) {
			return Topology{}, fmt.Errorf("service %q must depend on %q", app, dep)
		}
	}
	return topo, nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func normalizeNames(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	sort.Strings(values)
	result := make([]string, 0, len(values))
	var last string
	for _, value := range values {
		if value == last {
			continue
		}
		result = append(result, value)
		last = value
	}
	return result
}
