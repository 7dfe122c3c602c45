package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/buildbridge/cmd/buildbridge/commands"
	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{Logger: slog.Default()}
	parser := kong.Parse(cli,
		kong.Name("buildbridge"),
		kong.Description("Bridge multi-module build events to per-module build state and reporters."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global, cli),
	)

	if err := parser.Run(); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
