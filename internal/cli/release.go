package cli

import (
	"github.com/nholik/wolfpy-pipeline/internal/pipeline"
	"github.com/nholik/wolfpy-pipeline/internal/version"
	"github.com/spf13/cobra"
)

// NewReleaseCommand returns the wolfpy-release tool attached to the process console.
func NewReleaseCommand() *cobra.Command {
	return NewApp().ReleaseCommand()
}

// ReleaseCommand assembles wolfpy-release. The release notes are read from
// standard input after the tag preflight passes.
func (a *App) ReleaseCommand() *cobra.Command {
	var test bool
	root := newRoot("wolfpy-release <major|minor|patch>", "Bump the version, publish the package and tag the release")
	for _, kind := range version.Kinds {
		root.ValidArgs = append(root.ValidArgs, string(kind))
	}
	root.Args = cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs)
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return a.runPlan(cmd, false, func(s *session) (pipeline.Plan, error) {
			return s.planner.ReleasePlan(args[0], test, s.notes)
		})
	}
	root.Flags().BoolVar(&test, "test", false, "upload to TestPyPI and skip commit, tag and push")
	return a.wire(root)
}
