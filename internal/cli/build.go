package cli

import (
	"github.com/nholik/wolfpy-pipeline/internal/pipeline"
	"github.com/nholik/wolfpy-pipeline/internal/workflow"
	"github.com/spf13/cobra"
)

// NewBuildCommand returns the wolfpy-build tool attached to the process console.
func NewBuildCommand() *cobra.Command {
	return NewApp().BuildCommand()
}

// BuildCommand assembles wolfpy-build: build, publish and clean.
func (a *App) BuildCommand() *cobra.Command {
	root := newRoot("wolfpy-build", "Build, check and publish the package distributions")
	requireSubcommand(root)

	var noTests bool
	build := &cobra.Command{
		Use:   "build",
		Short: "Clean, validate, test and build the distributions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPlan(cmd, false, func(s *session) (pipeline.Plan, error) {
				return s.planner.BuildPlan(!noTests)
			})
		},
	}
	build.Flags().BoolVar(&noTests, "no-tests", false, "skip the test suite")

	var toTest, toProduction bool
	publish := &cobra.Command{
		Use:   "publish",
		Short: "Upload the distributions to TestPyPI or PyPI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := workflow.TargetTest
			if toProduction {
				target = workflow.TargetProduction
			}
			return a.runPlan(cmd, false, func(s *session) (pipeline.Plan, error) {
				return s.planner.PublishPlan(target)
			})
		},
	}
	publish.Flags().BoolVar(&toTest, "test", false, "upload to TestPyPI")
	publish.Flags().BoolVar(&toProduction, "production", false, "upload to PyPI after confirmation")
	publish.MarkFlagsMutuallyExclusive("test", "production")
	publish.MarkFlagsOneRequired("test", "production")

	clean := &cobra.Command{
		Use:   "clean",
		Short: "Remove build artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPlan(cmd, false, func(s *session) (pipeline.Plan, error) {
				return s.planner.CleanPlan()
			})
		},
	}

	root.AddCommand(build, publish, clean)
	return a.wire(root)
}
