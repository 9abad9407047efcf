package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nholik/wolfpy-pipeline/internal/failure"
	"github.com/nholik/wolfpy-pipeline/internal/pipeline"
	"github.com/nholik/wolfpy-pipeline/internal/vcs"
	"github.com/nholik/wolfpy-pipeline/internal/version"
)

const (
	changesPrompt = "Enter changelog for this release (end with empty line):"
	commitPrompt  = "This will commit, tag and push the release. Continue?"
)

// release carries what earlier steps learn to the later ones.
type release struct {
	kind    version.Kind
	test    bool
	changes string
	next    version.Version
	branch  string
	remote  string
	page    string
}

// ReleasePlan bumps the version, rebuilds and uploads the package and, for
// production releases, commits, tags and pushes the result.
func (p *Planner) ReleasePlan(kind string, test bool, notes TextProvider) (pipeline.Plan, error) {
	k, err := version.ParseKind(kind)
	if err != nil {
		return pipeline.Plan{}, err
	}
	if notes == nil {
		return pipeline.Plan{}, errors.New("release plan needs a changelog text provider")
	}

	r := &release{kind: k, test: test, remote: p.project.GitRemote}
	name := "release-" + string(k)
	if test {
		name += "-test"
	}

	upload := pipeline.Step{Name: "upload", Run: func(ctx context.Context) error {
		return p.upload(ctx, r.target())
	}}
	if !test {
		upload.Confirm = productionUploadPrompt
	}

	steps := []pipeline.Step{
		p.gitStep(r, pipeline.Step{Name: "check tag", Run: r.preflight(p)}),
		{Name: "collect changes", Run: func(context.Context) error {
			changes, err := notes.ReadLines(changesPrompt)
			if err != nil {
				return err
			}
			r.changes = changes
			return nil
		}},
		{Name: "run tests", Run: p.runReleaseTests},
		{Name: "lint", Run: p.lint},
		{Name: "bump version", Run: r.bump(p)},
		{Name: "rebuild", Run: p.rebuild},
		upload,
		p.gitStep(r, pipeline.Step{Name: "commit release", Confirm: commitPrompt, Run: r.commit(p)}),
		p.gitStep(r, pipeline.Step{Name: "tag release", Run: r.tag(p)}),
		p.gitStep(r, pipeline.Step{Name: "push release", Run: r.push(p)}),
		p.gitStep(r, pipeline.Step{Name: "release instructions", Run: r.instructions(p)}),
	}
	return pipeline.NewPlan(name, steps...)
}

// gitStep disables repository steps for test releases.
func (p *Planner) gitStep(r *release, step pipeline.Step) pipeline.Step {
	if r.test {
		return pipeline.Step{Name: step.Name, Skip: true, SkipReason: "test release"}
	}
	return step
}

func (r *release) target() Target {
	if r.test {
		return TargetTest
	}
	return TargetProduction
}

// preflight resolves the version about to be released and refuses to go on
// when its tag already exists, before any file is touched.
func (r *release) preflight(p *Planner) func(context.Context) error {
	return func(context.Context) error {
		current, err := p.versions.Current()
		if err != nil {
			return err
		}
		next, err := current.Bump(r.kind)
		if err != nil {
			return err
		}

		repo, err := p.openRepo(p.root)
		if err != nil {
			return err
		}
		taken, err := repo.TagExists(next.Tag())
		if err != nil {
			return err
		}
		if taken {
			return failure.Validation(fmt.Sprintf("tag %s already exists", next.Tag()))
		}
		ok, err := repo.HasRemote(r.remote)
		if err != nil {
			return err
		}
		if !ok {
			return failure.Validation(fmt.Sprintf("git remote %q is not configured", r.remote))
		}
		branch, err := repo.CurrentBranch()
		if err != nil {
			if errors.Is(err, vcs.ErrDetachedHead) {
				return failure.Validation("HEAD is detached; check out a branch before releasing")
			}
			return err
		}
		r.branch = branch
		if url, err := repo.RemoteURL(r.remote); err == nil {
			r.page = vcs.ReleasePageURL(url)
		}
		p.printf("   releasing %s from %s\n", next.Tag(), branch)
		return nil
	}
}

func (p *Planner) runReleaseTests(ctx context.Context) error {
	_, err := p.pythonModule(ctx, true, "pytest", "tests/", "-v")
	return err
}

func (p *Planner) lintTargets() []string {
	return []string{"src/" + p.project.Package, "tests"}
}

func (p *Planner) lint(ctx context.Context) error {
	if _, err := p.run(ctx, "flake8", p.lintTargets()...); err != nil {
		return fmt.Errorf("linting failed: %w", err)
	}
	if _, err := p.run(ctx, "black", append([]string{"--check"}, p.lintTargets()...)...); err != nil {
		return fmt.Errorf("code formatting check failed: %w", err)
	}
	return nil
}

func (r *release) bump(p *Planner) func(context.Context) error {
	return func(context.Context) error {
		previous, err := p.versions.Current()
		if err != nil {
			return err
		}
		next, err := p.versions.Release(r.kind, r.changes)
		if err != nil {
			return err
		}
		r.next = next
		p.printf("   version bumped from %s to %s\n", previous, next)
		return nil
	}
}

func (p *Planner) rebuild(ctx context.Context) error {
	for _, dir := range []string{distDir, buildDir} {
		if err := p.removeDir(dir); err != nil {
			return err
		}
	}
	_, err := p.pythonModule(ctx, true, "build")
	return err
}

func (r *release) commit(p *Planner) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := p.run(ctx, "git", "add", "."); err != nil {
			return err
		}
		_, err := p.run(ctx, "git", "commit", "-m", "chore: release "+r.next.Tag())
		return err
	}
}

func (r *release) tag(p *Planner) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := p.run(ctx, "git", "tag", r.next.Tag())
		return err
	}
}

func (r *release) push(p *Planner) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := p.attach(ctx, "git", "push", r.remote, r.branch); err != nil {
			return err
		}
		_, err := p.attach(ctx, "git", "push", r.remote, r.next.Tag())
		return err
	}
}

func (r *release) instructions(p *Planner) func(context.Context) error {
	return func(context.Context) error {
		page := r.page
		if page == "" {
			page = "your repository's new-release page"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "\n   GitHub release steps:\n")
		fmt.Fprintf(&b, "   1. Go to %s\n", page)
		fmt.Fprintf(&b, "   2. Tag: %s\n", r.next.Tag())
		fmt.Fprintf(&b, "   3. Title: %s %s (%s)\n", p.project.Package, r.next.Tag(), p.versions.Today().Format(time.DateOnly))
		fmt.Fprintf(&b, "   4. Description:\n")
		for _, line := range strings.Split(r.changes, "\n") {
			fmt.Fprintf(&b, "      %s\n", line)
		}
		fmt.Fprintf(&b, "   5. Upload dist/ files as assets\n")
		fmt.Fprintf(&b, "   6. Publish release\n")
		p.printf("%s", b.String())
		return nil
	}
}
