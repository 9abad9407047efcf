package cli

import (
	"github.com/nholik/wolfpy-pipeline/internal/pipeline"
	"github.com/spf13/cobra"
)

const defaultHostPort = 8000

// NewDeployCommand returns the wolfpy-deploy tool attached to the process console.
func NewDeployCommand() *cobra.Command {
	return NewApp().DeployCommand()
}

// DeployCommand assembles wolfpy-deploy: docker, heroku, k8s, env and compose-prod.
func (a *App) DeployCommand() *cobra.Command {
	root := newRoot("wolfpy-deploy", "Build and ship the application image or generate deployment files")
	requireSubcommand(root)

	root.AddCommand(
		a.dockerCommand(),
		a.planCommand("heroku", "Commit and push the application to Heroku", func(s *session) (pipeline.Plan, error) {
			return s.planner.HerokuPlan()
		}),
		a.planCommand("k8s", "Write Kubernetes manifests", func(s *session) (pipeline.Plan, error) {
			return s.planner.KubernetesPlan()
		}),
		a.planCommand("env", "Write the .env.template file", func(s *session) (pipeline.Plan, error) {
			return s.planner.EnvTemplatePlan()
		}),
		a.planCommand("compose-prod", "Write docker-compose.prod.yml", func(s *session) (pipeline.Plan, error) {
			return s.planner.ComposeProdPlan()
		}),
	)
	return a.wire(root)
}

func (a *App) dockerCommand() *cobra.Command {
	var (
		build, run bool
		registry   string
		tag        string
		port       int
	)
	cmd := &cobra.Command{
		Use:   "docker",
		Short: "Build, run or push the application image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPlan(cmd, true, func(s *session) (pipeline.Plan, error) {
				switch {
				case build:
					return s.planner.DockerBuildPlan(tag)
				case run:
					return s.planner.DockerRunPlan(port, tag)
				default:
					return s.planner.DockerPushPlan(registry, tag)
				}
			})
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&build, "build", false, "build the image")
	flags.BoolVar(&run, "run", false, "run the image locally")
	flags.StringVar(&registry, "push", "", "tag and push the image to `REGISTRY`")
	flags.StringVar(&tag, "tag", "", "image tag (default from settings)")
	flags.IntVar(&port, "port", defaultHostPort, "host port for --run")
	cmd.MarkFlagsMutuallyExclusive("build", "run", "push")
	cmd.MarkFlagsOneRequired("build", "run", "push")
	return cmd
}

func (a *App) planCommand(use, short string, build func(*session) (pipeline.Plan, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPlan(cmd, false, build)
		},
	}
}
