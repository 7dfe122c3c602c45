package commands

import (
	"os"
	"time"

	"git.home.luguber.info/inful/buildbridge/internal/build"
	"git.home.luguber.info/inful/buildbridge/internal/launcher"
)

// ReplayCmd implements the 'replay' command.
type ReplayCmd struct {
	BridgeFlags
	File         string        `arg:"" help:"Recorded event file (NDJSON)" type:"path"`
	Follow       bool          `short:"f" help:"Keep reading as the file grows until the session ends"`
	PollInterval time.Duration `name:"poll-interval" help:"Recheck interval in follow mode" default:"1s"`
}

func (r *ReplayCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	r.apply(cfg)

	return RunBuild(cfg, g, build.BuildRequest{
		Goals:   cfg.Build.Goals,
		Workdir: cfg.Build.Workdir,
		Launcher: &launcher.Replay{
			Path:         r.File,
			Follow:       r.Follow,
			PollInterval: r.PollInterval,
			Output:       os.Stdout,
		},
	})
}
