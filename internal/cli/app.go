// Package cli wires configuration, the command runner, the confirmation gate
// and the workflow planner into the three command-line tools.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nholik/wolfpy-pipeline/internal/command"
	"github.com/nholik/wolfpy-pipeline/internal/config"
	"github.com/nholik/wolfpy-pipeline/internal/dockerhost"
	"github.com/nholik/wolfpy-pipeline/internal/failure"
	"github.com/nholik/wolfpy-pipeline/internal/logging"
	"github.com/nholik/wolfpy-pipeline/internal/metrics"
	"github.com/nholik/wolfpy-pipeline/internal/notify"
	"github.com/nholik/wolfpy-pipeline/internal/pipeline"
	"github.com/nholik/wolfpy-pipeline/internal/prompt"
	"github.com/nholik/wolfpy-pipeline/internal/workflow"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

const notifyTimeout = 30 * time.Second

// App holds the collaborators shared by every command. Nil fields fall back
// to the real implementations.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	LoadConfig func() (config.Config, error)
	Runner     command.Runner
	Gate       pipeline.Gate
	Notes      workflow.TextProvider
	Docker     dockerhost.Pinger
	Repository func(dir string) (workflow.Repository, error)
	Logger     *zerolog.Logger
	Clock      func() time.Time
}

// NewApp returns an App attached to the process console.
func NewApp() *App {
	return &App{
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		LoadConfig: config.Load,
		Clock:      time.Now,
	}
}

// session is everything one command invocation needs.
type session struct {
	app      *App
	cfg      config.Config
	project  config.Project
	logger   zerolog.Logger
	planner  *workflow.Planner
	metrics  *metrics.Metrics
	notifier notify.Notifier
	gate     pipeline.Gate
	notes    workflow.TextProvider
	closers  []func() error
}

func (a *App) open(withDocker bool) (*session, error) {
	cfg, err := a.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.NewWithWriter(zerolog.ConsoleWriter{Out: a.Stderr, TimeFormat: "15:04:05"}, cfg.LogLevel)
	if a.Logger != nil {
		logger = *a.Logger
	}

	project, err := config.LoadProject(cfg.SettingsFile)
	if err != nil {
		return nil, err
	}

	s := &session{app: a, cfg: cfg, project: project, logger: logger, metrics: metrics.New()}

	// gate and notes share one console so buffered input is not split between readers
	console := prompt.New(a.Stdin, a.Stdout)
	s.gate, s.notes = a.Gate, a.Notes
	if s.gate == nil {
		s.gate = console
	}
	if s.notes == nil {
		s.notes = console
	}

	runner := a.Runner
	if runner == nil {
		runner = command.NewExecRunner(logger, command.WithConsole(a.Stdin, a.Stdout, a.Stderr))
	}

	opts := []workflow.Option{
		workflow.WithPython(cfg.Python),
		workflow.WithOutput(a.Stdout),
		workflow.WithRepository(a.Repository),
	}
	if withDocker {
		pinger := a.Docker
		if pinger == nil {
			client, err := dockerhost.NewDockerClient(cfg.DockerHost, 0)
			if err != nil {
				return nil, err
			}
			s.closers = append(s.closers, client.Close)
			pinger = client
		}
		opts = append(opts, workflow.WithDocker(pinger))
	}
	s.planner = workflow.NewPlanner(cfg.ProjectRoot, project, runner, logger, opts...)

	s.notifier, err = buildNotifier(logger, cfg)
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func buildNotifier(logger zerolog.Logger, cfg config.Config) (notify.Notifier, error) {
	var notifiers []notify.Notifier
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(logger, cfg.SlackWebhookURL))
	}
	webhook, err := notify.NewWebhookNotifier(logger, cfg.WebhookURL, cfg.WebhookTemplate)
	if err != nil {
		return nil, &failure.ConfigError{Field: "WOLFPY_WEBHOOK_TEMPLATE", Reason: err.Error()}
	}
	if webhook != nil {
		notifiers = append(notifiers, webhook)
	}
	if len(notifiers) == 0 {
		return notify.NewNoop(logger, "no notification channel configured"), nil
	}

	var notifier notify.Notifier = notify.NewMultiNotifier(notifiers...)
	if cfg.NotifyDryRun {
		notifier = notify.NewDryRunNotifier(logger, notifier)
	}
	return notifier, nil
}

// execute builds a plan, runs it and reports the outcome to metrics and
// notification channels. Reporting problems are logged, never returned.
func (s *session) execute(ctx context.Context, build func(*session) (pipeline.Plan, error)) error {
	defer s.close()

	plan, err := build(s)
	if err != nil {
		return err
	}

	sequencer := pipeline.New(s.logger,
		pipeline.WithGate(s.gate),
		pipeline.WithReporter(pipeline.NewConsoleReporter(s.app.Stdout)),
		pipeline.WithRecorder(s.metrics),
	)
	report, runErr := sequencer.Run(ctx, plan)

	if s.cfg.MetricsFile != "" {
		if err := s.metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
			s.logger.Warn().Err(err).Str("path", s.cfg.MetricsFile).Msg("metrics textfile not written")
		}
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	summary := notify.SummaryFromReport(s.project.Package, report, s.app.clock())
	if err := s.notifier.Notify(notifyCtx, summary); err != nil {
		s.logger.Warn().Err(err).Str("workflow", plan.Name()).Msg("run summary not delivered")
	}

	return runErr
}

func (s *session) close() {
	for _, closer := range s.closers {
		_ = closer()
	}
	s.closers = nil
}

func (a *App) clock() time.Time {
	if a.Clock == nil {
		return time.Now()
	}
	return a.Clock()
}

func (a *App) runPlan(cmd *cobra.Command, withDocker bool, build func(*session) (pipeline.Plan, error)) error {
	s, err := a.open(withDocker)
	if err != nil {
		return err
	}
	return s.execute(cmd.Context(), build)
}

// Execute runs root until it finishes or the operator interrupts it and maps
// the outcome to a process exit code.
func Execute(root *cobra.Command) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), describe(root.Name(), err))
		return 1
	}
	return 0
}

// describe renders the failing step and its diagnostic, or the bare error
// for failures outside any step.
func describe(tool string, err error) string {
	var stepErr *pipeline.StepError
	if errors.As(err, &stepErr) {
		return fmt.Sprintf("%s: failed at step %q [%s]: %s", tool, stepErr.Step, failure.KindOf(err), pipeline.Diagnostic(stepErr.Err))
	}
	return fmt.Sprintf("%s: %v", tool, err)
}

func newRoot(use, short string) *cobra.Command {
	root := &cobra.Command{
		Use:           use,
		Short:         short,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(root.Name() + " version {{.Version}}\n")
	return root
}

// requireSubcommand makes a bare invocation print help and fail.
func requireSubcommand(root *cobra.Command) {
	root.RunE = func(cmd *cobra.Command, args []string) error {
		_ = cmd.Help()
		return errors.New("a subcommand is required")
	}
}

func (a *App) wire(root *cobra.Command) *cobra.Command {
	root.SetIn(a.Stdin)
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)
	return root
}
