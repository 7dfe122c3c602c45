package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/buildbridge/internal/build"
	"git.home.luguber.info/inful/buildbridge/internal/config"
	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/launcher"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
)

// BridgeFlags override the bridge section of the configuration.
type BridgeFlags struct {
	ForceSuccess bool `name:"force-success" help:"Report a failed build as successful"`
	Debug        bool `help:"Mirror lifecycle transitions to the progress output"`
	Profile      bool `help:"Print the bridge overhead after the build"`
}

func (f BridgeFlags) apply(cfg *config.Config) {
	cfg.Bridge.ForceSuccess = cfg.Bridge.ForceSuccess || f.ForceSuccess
	cfg.Bridge.Debug = cfg.Bridge.Debug || f.Debug
	cfg.Bridge.Profile = cfg.Bridge.Profile || f.Profile
}

// RunCmd implements the 'run' command.
type RunCmd struct {
	BridgeFlags
	Goals   []string `arg:"" optional:"" help:"Goals passed to the build tool; defaults to build.goals"`
	Workdir string   `short:"C" help:"Working directory of the build; overrides build.workdir"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	r.apply(cfg)
	if r.Workdir != "" {
		cfg.Build.Workdir = r.Workdir
	}
	goals := r.Goals
	if len(goals) == 0 {
		goals = cfg.Build.Goals
	}

	return RunBuild(cfg, g, build.BuildRequest{
		Goals:   goals,
		Workdir: cfg.Build.Workdir,
		Launcher: &launcher.Process{
			Command: cfg.Build.Command,
			Dir:     cfg.Build.Workdir,
			Output:  os.Stdout,
		},
	})
}

// RunBuild assembles the service, runs one build with its post-build pass
// and turns an unsuccessful result into a build error.
func RunBuild(cfg *config.Config, g *Global, req build.BuildRequest) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := assemble(ctx, cfg, g.Logger, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	var ln net.Listener
	if a.registry != nil {
		if ln, err = listenMetrics(cfg.Metrics.Listen); err != nil {
			return err
		}
	}

	// The build runs on ctx so a failing metrics server cannot cancel it.
	var grp errgroup.Group
	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()
	if ln != nil {
		grp.Go(func() error {
			if err := serveMetrics(serveCtx, ln, a.registry); err != nil {
				slog.Warn("Metrics server stopped", logfields.Error(err))
			}
			return nil
		})
	}

	res, runErr := a.service.Run(ctx, req)
	a.service.End(context.WithoutCancel(ctx))
	stopServing()
	_ = grp.Wait()
	if runErr != nil {
		return runErr
	}

	if !res.IsSuccess() {
		return errors.BuildError(fmt.Sprintf("build finished with result %s", res.Result)).
			WithContext("build_id", res.BuildID).
			WithContext("exit_code", res.ExitCode).
			Build()
	}
	return nil
}
