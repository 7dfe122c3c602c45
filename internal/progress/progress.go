// Package progress writes a human-readable, line-oriented log of the build
// as events arrive.
package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/buildbridge/internal/execevent"
	"git.home.luguber.info/inful/buildbridge/internal/module"
)

const separator = "------------------------------------------------------------------------"

type moduleLine struct {
	project module.Project
	status  string
	start   time.Time
	elapsed time.Duration
}

// Log mirrors lifecycle transitions to a writer and prints a reactor summary
// when the session ends. Safe for concurrent use.
type Log struct {
	mu    sync.Mutex
	w     io.Writer
	now   func() time.Time
	order []module.Name
	lines map[module.Name]*moduleLine
}

// Option configures a Log.
type Option func(*Log)

// WithClock replaces the wall clock used for module durations.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New returns a Log writing to w.
func New(w io.Writer, opts ...Option) *Log {
	l := &Log{w: w, now: time.Now, lines: make(map[module.Name]*moduleLine)}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Observe writes the lines for one event.
func (l *Log) Observe(_ context.Context, ev execevent.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch ev.Kind {
	case execevent.KindSessionStarted:
		l.sessionStarted(ev.Projects)
	case execevent.KindSessionEnded:
		l.summary()
	case execevent.KindProjectSkipped:
		l.finish(ev.Project, "SKIPPED")
		l.infof("Skipping %s", ev.Project.Label())
	case execevent.KindProjectStarted:
		l.start(ev.Project)
		l.infof("%s", separator)
		l.infof("Building %s %s", ev.Project.Label(), ev.Project.Name.Version)
		l.infof("%s", separator)
	case execevent.KindProjectSucceeded:
		l.finish(ev.Project, "SUCCESS")
	case execevent.KindProjectFailed:
		l.finish(ev.Project, "FAILURE")
	case execevent.KindStepSkipped:
		l.infof("Skipping %s @ %s", ev.Step, ev.Project.Name.ArtifactID)
	case execevent.KindStepStarted:
		l.infof("")
		l.infof("--- %s @ %s ---", ev.Step, ev.Project.Name.ArtifactID)
	case execevent.KindStepFailed, execevent.KindForkFailed:
		msg := "failed"
		if ev.Exception != nil {
			msg = "failed: " + ev.Exception.Error()
		}
		l.linef("ERROR", "%s @ %s %s", ev.Step, ev.Project.Name.ArtifactID, msg)
	case execevent.KindForkStarted:
		l.infof("")
		l.infof(">>> %s @ %s >>>", ev.Step, ev.Project.Name.ArtifactID)
	case execevent.KindForkSucceeded:
		l.infof("")
		l.infof("<<< %s @ %s <<<", ev.Step, ev.Project.Name.ArtifactID)
	case execevent.KindForkedProjectStarted:
		l.infof("Forking %s %s", ev.Project.Label(), ev.Project.Name.Version)
	case execevent.KindForkedProjectFailed:
		l.linef("ERROR", "Forked build of %s failed", ev.Project.Label())
	case execevent.KindDiscoveryStarted, execevent.KindStepSucceeded, execevent.KindForkedProjectSucceeded:
	}
}

func (l *Log) sessionStarted(projects []module.Project) {
	if len(projects) == 0 {
		return
	}
	l.infof("%s", separator)
	l.infof("Reactor Build Order:")
	l.infof("")
	for _, p := range projects {
		l.infof("%s", p.Label())
		if _, ok := l.lines[p.Name]; !ok {
			l.order = append(l.order, p.Name)
			l.lines[p.Name] = &moduleLine{project: p}
		}
	}
}

func (l *Log) start(p *module.Project) {
	line, ok := l.lines[p.Name]
	if !ok {
		line = &moduleLine{}
		l.lines[p.Name] = line
		l.order = append(l.order, p.Name)
	}
	line.project = *p
	line.start = l.now()
	line.status = ""
}

func (l *Log) finish(p *module.Project, status string) {
	line, ok := l.lines[p.Name]
	if !ok {
		line = &moduleLine{project: *p}
		l.lines[p.Name] = line
		l.order = append(l.order, p.Name)
	}
	line.status = status
	if !line.start.IsZero() {
		line.elapsed = l.now().Sub(line.start)
	}
}

func (l *Log) summary() {
	if len(l.order) == 0 {
		return
	}
	l.infof("%s", separator)
	l.infof("Reactor Summary:")
	l.infof("")
	for _, name := range l.order {
		line := l.lines[name]
		status := line.status
		if status == "" {
			status = "NOT BUILT"
		}
		label := line.project.Label()
		if line.project.Name.IsZero() {
			label = name.String()
		}
		dots := 50 - len(label)
		if dots < 3 {
			dots = 3
		}
		text := fmt.Sprintf("%s %s %s", label, strings.Repeat(".", dots), status)
		if line.elapsed > 0 {
			text += fmt.Sprintf(" [%.3fs]", line.elapsed.Seconds())
		}
		l.infof("%s", text)
	}
	l.infof("%s", separator)
}

func (l *Log) infof(format string, args ...any) {
	l.linef("INFO", format, args...)
}

func (l *Log) linef(level, format string, args ...any) {
	_, _ = fmt.Fprintf(l.w, "[%s] %s\n", level, fmt.Sprintf(format, args...))
}
