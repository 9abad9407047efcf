package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nholik/wolfpy-pipeline/internal/command"
	"github.com/nholik/wolfpy-pipeline/internal/compose"
	"github.com/nholik/wolfpy-pipeline/internal/dockerhost"
	"github.com/nholik/wolfpy-pipeline/internal/failure"
	"github.com/nholik/wolfpy-pipeline/internal/manifest"
	"github.com/nholik/wolfpy-pipeline/internal/pipeline"
)

const (
	envFile         = ".env"
	envTemplateFile = ".env.template"
	composeProdFile = "docker-compose.prod.yml"
	procfile        = "Procfile"
	runtimeFile     = "runtime.txt"
	herokuPrompt    = "This will push the current branch to Heroku. Continue?"
)

func (p *Planner) imageTag(tag string) string {
	if tag == "" {
		tag = p.project.Tag
	}
	return dockerhost.ImageRef(p.project.Image, tag)
}

func (p *Planner) dockerPreflight() []pipeline.Step {
	ping := pipeline.Step{Name: "ping daemon", Run: p.pingDaemon}
	if p.docker == nil {
		ping = pipeline.Step{Name: "ping daemon", Skip: true, SkipReason: "no daemon client configured"}
	}
	return []pipeline.Step{
		{Name: "check docker", Run: p.toolVersion("docker")},
		ping,
	}
}

func (p *Planner) toolVersion(tool string) func(context.Context) error {
	return func(ctx context.Context) error {
		result, err := p.run(ctx, tool, "--version")
		if err != nil {
			return err
		}
		p.logger.Debug().Str("tool", tool).Str("version", strings.TrimSpace(result.Stdout)).Msg("tool available")
		return nil
	}
}

func (p *Planner) pingDaemon(ctx context.Context) error {
	daemon, err := p.docker.Ping(ctx)
	if err != nil {
		return err
	}
	p.logger.Debug().Str("api_version", daemon.APIVersion).Str("os", daemon.OSType).Msg("docker daemon reachable")
	return nil
}

// DockerBuildPlan builds the application image as image:tag.
// An empty tag uses the configured one.
func (p *Planner) DockerBuildPlan(tag string) (pipeline.Plan, error) {
	image := p.imageTag(tag)
	steps := append(p.dockerPreflight(), pipeline.Step{
		Name: "build image",
		Run: func(ctx context.Context) error {
			if _, err := p.attach(ctx, "docker", "build", "-t", image, "."); err != nil {
				return err
			}
			p.printf("   built %s\n", image)
			return nil
		},
	})
	return pipeline.NewPlan("docker-build", steps...)
}

// DockerRunPlan runs the image in the foreground with hostPort published.
// Interrupting the container is a clean stop.
func (p *Planner) DockerRunPlan(hostPort int, tag string) (pipeline.Plan, error) {
	mapping := manifest.PortMapping(hostPort, p.project.ContainerPort)
	if err := manifest.ValidatePortMapping(mapping); err != nil {
		return pipeline.Plan{}, &failure.ConfigError{Field: "port", Reason: err.Error()}
	}
	image := p.imageTag(tag)

	steps := append(p.dockerPreflight(), pipeline.Step{
		Name: "run container",
		Run: func(ctx context.Context) error {
			args := []string{"run", "-p", mapping, "--rm", "--name", p.project.Image + "-local"}
			envArgs, err := p.envFileArgs()
			if err != nil {
				return err
			}
			args = append(args, envArgs...)
			args = append(args, image)

			p.printf("   running %s on port %d, press Ctrl+C to stop\n", image, hostPort)
			_, err = p.attach(ctx, "docker", args...)
			if errors.Is(err, failure.ErrInterrupted) {
				p.printf("   container stopped\n")
				return nil
			}
			return err
		},
	})
	return pipeline.NewPlan("docker-run", steps...)
}

// envFileArgs passes .env to the container when present. The file must parse.
func (p *Planner) envFileArgs() ([]string, error) {
	path := p.path(envFile)
	if !exists(path) {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, failure.Validation(fmt.Sprintf("%s is not a valid env file: %v", envFile, err))
	}
	p.logger.Debug().Int("vars", len(vars)).Msg("passing env file to container")
	return []string{"--env-file", envFile}, nil
}

// DockerPushPlan tags image:tag for registry and pushes it.
func (p *Planner) DockerPushPlan(registry, tag string) (pipeline.Plan, error) {
	registry = strings.TrimSpace(registry)
	if registry == "" {
		registry = p.project.Registry
	}
	if registry == "" {
		return pipeline.Plan{}, &failure.ConfigError{Field: "registry", Reason: "a registry is required to push"}
	}
	if tag == "" {
		tag = p.project.Tag
	}
	local := p.imageTag(tag)
	remote := dockerhost.RemoteRef(registry, p.project.Image, tag)

	steps := append(p.dockerPreflight(),
		pipeline.Step{Name: "tag image", Run: func(ctx context.Context) error {
			_, err := p.run(ctx, "docker", "tag", local, remote)
			return err
		}},
		pipeline.Step{Name: "push image", Run: func(ctx context.Context) error {
			if _, err := p.attach(ctx, "docker", "push", remote); err != nil {
				return err
			}
			p.printf("   pushed %s\n", remote)
			return nil
		}},
	)
	return pipeline.NewPlan("docker-push", steps...)
}

// HerokuPlan adds the platform files when missing, commits and pushes to the
// configured Heroku remote.
func (p *Planner) HerokuPlan() (pipeline.Plan, error) {
	return pipeline.NewPlan("heroku",
		pipeline.Step{Name: "check heroku", Run: p.toolVersion("heroku")},
		pipeline.Step{Name: "platform files", Run: p.platformFiles},
		pipeline.Step{Name: "commit", Run: p.herokuCommit},
		pipeline.Step{Name: "push", Confirm: herokuPrompt, Run: func(ctx context.Context) error {
			_, err := p.attach(ctx, "git", "push", p.project.HerokuRemote, p.project.HerokuBranch)
			return err
		}},
	)
}

func (p *Planner) platformFiles(context.Context) error {
	files := []manifest.File{
		{Path: procfile, Data: []byte(manifest.RenderProcfile())},
		{Path: runtimeFile, Data: []byte(manifest.RenderRuntime(p.project.PythonRuntime))},
	}
	for _, f := range files {
		if exists(p.path(f.Path)) {
			p.printf("   %s kept\n", f.Path)
			continue
		}
		if err := p.writeArtifact(f.Path, f.Data); err != nil {
			return err
		}
	}
	return nil
}

// herokuCommit tolerates a commit with nothing staged.
func (p *Planner) herokuCommit(ctx context.Context) error {
	if _, err := p.run(ctx, "git", "add", "."); err != nil {
		return err
	}
	result, err := p.run(ctx, "git", "commit", "-m", "Deploy to Heroku")
	var procErr *command.ProcessError
	if errors.As(err, &procErr) && procErr.ExitCode == 1 {
		p.logger.Info().Str("output", strings.TrimSpace(result.Stdout)).Msg("nothing to commit")
		return nil
	}
	return err
}

// KubernetesPlan renders the deployment, service and ingress manifests into
// the manifests directory.
func (p *Planner) KubernetesPlan() (pipeline.Plan, error) {
	cfg := p.project.ManifestConfig()
	dir := p.project.ManifestsDir
	var files []manifest.File

	return pipeline.NewPlan("k8s",
		pipeline.Step{Name: "validate configuration", Run: func(context.Context) error {
			return cfg.Validate()
		}},
		pipeline.Step{Name: "render manifests", Run: func(context.Context) error {
			rendered, err := manifest.ClusterFiles(cfg, dir)
			if err != nil {
				return err
			}
			files = rendered
			return nil
		}},
		pipeline.Step{Name: "write manifests", Run: func(context.Context) error {
			if err := os.MkdirAll(p.path(dir), 0o755); err != nil {
				return err
			}
			for _, f := range files {
				if err := p.writeArtifact(f.Path, f.Data); err != nil {
					return err
				}
			}
			p.printf("   update the ingress host and apply with: kubectl apply -f %s/\n", filepath.ToSlash(dir))
			return nil
		}},
	)
}

// EnvTemplatePlan writes .env.template.
func (p *Planner) EnvTemplatePlan() (pipeline.Plan, error) {
	return pipeline.NewPlan("env",
		pipeline.Step{Name: "write env template", Run: func(context.Context) error {
			body := manifest.RenderEnvTemplate()
			if _, err := godotenv.Unmarshal(body); err != nil {
				return fmt.Errorf("env template does not parse: %w", err)
			}
			return p.writeArtifact(envTemplateFile, []byte(body))
		}},
	)
}

// ComposeProdPlan renders the production compose file, checks it loads as a
// compose project with the application after its cache and store, then writes it.
func (p *Planner) ComposeProdPlan() (pipeline.Plan, error) {
	cfg := p.project.ManifestConfig()
	var body []byte

	return pipeline.NewPlan("compose-prod",
		pipeline.Step{Name: "render compose", Run: func(context.Context) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			doc := manifest.RenderCompose(cfg)
			if err := manifest.ValidatePorts(doc); err != nil {
				return err
			}
			encoded, err := manifest.Encode(doc)
			if err != nil {
				return err
			}
			body = encoded
			return nil
		}},
		pipeline.Step{Name: "validate compose", Run: func(ctx context.Context) error {
			topo, err := compose.Validate(ctx, body, manifest.AppService, manifest.CacheService, manifest.StoreService)
			if err != nil {
				return failure.Validation(err.Error())
			}
			p.logger.Debug().Int("services", len(topo.Services)).Strs("volumes", topo.Volumes).Msg("compose topology valid")
			return nil
		}},
		pipeline.Step{Name: "write compose", Run: func(context.Context) error {
			return p.writeArtifact(composeProdFile, body)
		}},
	)
}
