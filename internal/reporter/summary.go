package reporter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/module"
	"git.home.luguber.info/inful/buildbridge/internal/proxy"
)

const indexFile = "index.html"

type moduleReport struct {
	project  module.Project
	steps    []module.ExecutedStep
	failures []string
	built    bool
}

func (m *moduleReport) failed() bool { return len(m.failures) > 0 }

// Summary renders an HTML page per module after it is built and an index of
// every module in the End pass. Page rendering is deferred through the proxy
// when it supports asynchronous work.
type Summary struct {
	dir string
	md  goldmark.Markdown

	mu      sync.Mutex
	reports map[module.Name]*moduleReport
}

// NewSummary is the factory for the "summary" reporter.
func NewSummary(opts Options) (Reporter, error) {
	if opts.OutputDir == "" {
		return nil, errors.ConfigError("summary reporter requires an output directory").Build()
	}
	return &Summary{
		dir:     opts.OutputDir,
		md:      goldmark.New(goldmark.WithExtensions(extension.Table)),
		reports: make(map[module.Name]*moduleReport),
	}, nil
}

func (s *Summary) Name() string { return "summary" }

func (s *Summary) report(project module.Project) *moduleReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[project.Name]
	if !ok {
		r = &moduleReport{project: project}
		s.reports[project.Name] = r
	}
	return r
}

func (s *Summary) EnterModule(_ context.Context, _ proxy.BuildProxy, project module.Project) error {
	s.report(project)
	return nil
}

func (s *Summary) PreBuild(context.Context, proxy.BuildProxy, module.Project) error { return nil }

func (s *Summary) PreExecute(context.Context, proxy.BuildProxy, module.Project, module.StepInfo) error {
	return nil
}

func (s *Summary) PostExecute(_ context.Context, _ proxy.BuildProxy, project module.Project, executed module.ExecutedStep, cause error) error {
	r := s.report(project)
	s.mu.Lock()
	defer s.mu.Unlock()
	r.steps = append(r.steps, executed)
	if executed.Failed() {
		msg := "failed"
		if cause != nil {
			msg = cause.Error()
		}
		r.failures = append(r.failures, fmt.Sprintf("%s: %s", executed.Step.Key(), msg))
	}
	return nil
}

func (s *Summary) LeaveModule(context.Context, proxy.BuildProxy, module.Project) error { return nil }

// PostBuild renders the module page.
func (s *Summary) PostBuild(ctx context.Context, p proxy.BuildProxy, project module.Project) error {
	r := s.report(project)
	s.mu.Lock()
	r.built = true
	source := moduleMarkdown(r)
	s.mu.Unlock()

	path := filepath.Join(s.dir, pageName(project.Name))
	render := func(context.Context) error { return s.writeHTML(path, source) }
	if exec, ok := p.(proxy.AsyncExecutor); ok {
		exec.ExecuteAsync(ctx, "summary "+project.Name.String(), render)
		return nil
	}
	return render(ctx)
}

// End rewrites the index. It runs once per module, so the last call wins.
func (s *Summary) End(context.Context, proxy.BuildProxy, module.Project) error {
	s.mu.Lock()
	reports := make([]*moduleReport, 0, len(s.reports))
	for _, r := range s.reports {
		reports = append(reports, r)
	}
	s.mu.Unlock()
	slices.SortFunc(reports, func(a, b *moduleReport) int { return a.project.Name.Compare(b.project.Name) })

	var b strings.Builder
	b.WriteString("# Build summary\n\n| Module | Status | Steps |\n|---|---|---|\n")
	for _, r := range reports {
		status := "SUCCESS"
		switch {
		case !r.built:
			status = "INCOMPLETE"
		case r.failed():
			status = "FAILURE"
		}
		fmt.Fprintf(&b, "| [%s](%s) | %s | %d |\n", r.project.Label(), pageName(r.project.Name), status, len(r.steps))
	}
	return s.writeHTML(filepath.Join(s.dir, indexFile), b.String())
}

func (s *Summary) writeHTML(path, source string) error {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(source), &buf); err != nil {
		return errors.WrapError(err, errors.CategoryReporter, "render summary").
			WithContext("path", path).
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryReporter, "create summary directory").
			WithContext("path", path).
			Build()
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryReporter, "write summary").
			WithContext("path", path).
			Build()
	}
	return nil
}

func moduleMarkdown(r *moduleReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n`%s`\n\n", r.project.Label(), r.project.Name)
	if len(r.steps) > 0 {
		b.WriteString("| Step | Outcome | Elapsed |\n|---|---|---|\n")
		for _, st := range r.steps {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", st.Step, st.Outcome, st.Elapsed)
		}
	}
	if r.failed() {
		b.WriteString("\n## Failures\n\n")
		for _, f := range r.failures {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}

func pageName(name module.Name) string {
	return fmt.Sprintf("%s.%s.html", name.GroupID, name.ArtifactID)
}
