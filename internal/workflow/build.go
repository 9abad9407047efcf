package workflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nholik/wolfpy-pipeline/internal/command"
	"github.com/nholik/wolfpy-pipeline/internal/failure"
	"github.com/nholik/wolfpy-pipeline/internal/pipeline"
)

// Target is a package index the publish workflow uploads to.
type Target string

const (
	TargetTest       Target = "testpypi"
	TargetProduction Target = "pypi"
)

var buildModules = []string{"build", "twine", "wheel"}

// productionUploadPrompt guards every upload to the production index.
const productionUploadPrompt = "This will publish to production PyPI. Continue?"

// BuildPlan cleans, validates, optionally tests, builds and checks the package.
func (p *Planner) BuildPlan(runTests bool) (pipeline.Plan, error) {
	name := "build"
	if !runTests {
		name = "build-no-tests"
	}
	return pipeline.NewPlan(name, p.buildSteps(runTests)...)
}

func (p *Planner) buildSteps(runTests bool) []pipeline.Step {
	tests := pipeline.Step{Name: "run tests", Run: p.runBuildTests}
	if !runTests {
		tests = pipeline.Step{Name: "run tests", Skip: true, SkipReason: "disabled with --no-tests"}
	}
	return []pipeline.Step{
		{Name: "clean", Run: p.clean},
		{Name: "check dependencies", Run: p.checkDependencies},
		{Name: "validate project", Run: p.validateProject},
		tests,
		{Name: "build package", Run: p.buildPackage},
		{Name: "check package", Run: p.checkPackage},
	}
}

// PublishPlan uploads the built distributions to target. When dist/ holds
// nothing yet the full build runs first.
func (p *Planner) PublishPlan(target Target) (pipeline.Plan, error) {
	var name string
	upload := pipeline.Step{Name: "upload"}
	switch target {
	case TargetTest:
		name = "publish-test"
		upload.Run = func(ctx context.Context) error { return p.upload(ctx, TargetTest) }
	case TargetProduction:
		name = "publish-production"
		upload.Run = func(ctx context.Context) error { return p.upload(ctx, TargetProduction) }
		upload.Confirm = productionUploadPrompt
	default:
		return pipeline.Plan{}, &failure.ConfigError{Field: "publish target", Reason: fmt.Sprintf("unknown target %q", target)}
	}

	var steps []pipeline.Step
	if files, err := p.distFiles(); err != nil || len(files) == 0 {
		steps = append(steps, p.buildSteps(true)...)
	}
	steps = append(steps, upload)
	return pipeline.NewPlan(name, steps...)
}

// CleanPlan removes build artifacts only.
func (p *Planner) CleanPlan() (pipeline.Plan, error) {
	return pipeline.NewPlan("clean", pipeline.Step{Name: "clean", Run: p.clean})
}

func (p *Planner) clean(context.Context) error {
	for _, dir := range []string{distDir, buildDir} {
		if err := p.removeDir(dir); err != nil {
			return err
		}
	}

	eggs, err := filepath.Glob(p.path("*.egg-info"))
	if err != nil {
		return err
	}
	for _, egg := range eggs {
		rel, _ := filepath.Rel(p.root, egg)
		if err := p.removeDir(rel); err != nil {
			return err
		}
	}

	var caches []string
	err = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		switch d.Name() {
		case ".git":
			return filepath.SkipDir
		case "__pycache__":
			caches = append(caches, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan for __pycache__: %w", err)
	}
	for _, cache := range caches {
		if err := os.RemoveAll(cache); err != nil {
			return err
		}
	}
	p.logger.Debug().Int("pycache", len(caches)).Msg("removed bytecode caches")
	return nil
}

func (p *Planner) removeDir(rel string) error {
	path := p.path(rel)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", rel, err)
	}
	p.printf("   removed %s\n", rel)
	return nil
}

func (p *Planner) checkDependencies(ctx context.Context) error {
	var missing []string
	for _, module := range buildModules {
		_, err := p.run(ctx, p.python, "-c", "import "+module)
		var procErr *command.ProcessError
		switch {
		case err == nil:
			p.printf("   ok %s\n", module)
		case errors.As(err, &procErr):
			p.printf("   missing %s\n", module)
			missing = append(missing, module)
		default:
			return err
		}
	}
	if len(missing) > 0 {
		return failure.Validation(fmt.Sprintf("missing required packages: %s (install with: pip install %s)",
			strings.Join(missing, ", "), strings.Join(missing, " ")))
	}
	return nil
}

func (p *Planner) requiredFiles() []string {
	return []string{
		projectFile,
		"README.md",
		"LICENSE",
		filepath.Join("src", p.project.Package, "__init__.py"),
	}
}

func (p *Planner) validateProject(context.Context) error {
	var problems []string
	for _, rel := range p.requiredFiles() {
		if exists(p.path(rel)) {
			p.printf("   ok %s\n", rel)
			continue
		}
		p.printf("   missing %s\n", rel)
		problems = append(problems, "missing "+rel)
	}
	if len(problems) > 0 {
		return failure.Validation(problems...)
	}

	current, err := p.versions.Current()
	if err != nil {
		return fmt.Errorf("could not read version: %w", err)
	}
	p.printf("   version %s\n", current)
	return nil
}

func (p *Planner) runBuildTests(ctx context.Context) error {
	_, err := p.pythonModule(ctx, true, "pytest", "tests/", "-v", "--tb=short")
	var notFound *command.NotFoundError
	if errors.As(err, &notFound) {
		return pipeline.Skipped(fmt.Sprintf("%s not found, skipping tests", notFound.Name))
	}
	return err
}

func (p *Planner) buildPackage(ctx context.Context) error {
	if _, err := p.pythonModule(ctx, true, "build"); err != nil {
		return err
	}
	files, err := p.distFiles()
	if err != nil {
		return err
	}
	for _, rel := range files {
		info, err := os.Stat(p.path(rel))
		if err != nil {
			return err
		}
		p.printf("   %s (%d bytes)\n", filepath.Base(rel), info.Size())
	}
	return nil
}

func (p *Planner) checkPackage(ctx context.Context) error {
	files, err := p.requireDist()
	if err != nil {
		return err
	}
	_, err = p.pythonModule(ctx, true, "twine", append([]string{"check"}, files...)...)
	return err
}

func (p *Planner) upload(ctx context.Context, target Target) error {
	files, err := p.requireDist()
	if err != nil {
		return err
	}
	args := []string{"upload"}
	if target == TargetTest {
		args = append(args, "--repository", string(TargetTest))
	}
	if _, err := p.pythonModule(ctx, true, "twine", append(args, files...)...); err != nil {
		return err
	}
	p.printf("   check your package at %s\n", p.indexURL(target))
	return nil
}

func (p *Planner) indexURL(target Target) string {
	host := "pypi.org"
	if target == TargetTest {
		host = "test.pypi.org"
	}
	return fmt.Sprintf("https://%s/project/%s/", host, p.project.Package)
}

// distFiles lists the regular files in dist/, relative to the root.
// A missing directory yields no files and no error.
func (p *Planner) distFiles() ([]string, error) {
	entries, err := os.ReadDir(p.path(distDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, filepath.Join(distDir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (p *Planner) requireDist() ([]string, error) {
	files, err := p.distFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, failure.Validation("dist/ contains no built distributions")
	}
	return files, nil
}
