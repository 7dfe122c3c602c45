package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/buildbridge/internal/eventstore"
	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct {
	BuildID string `arg:"" optional:"" help:"Show the modules of this build; lists recent builds when omitted"`
	Limit   int    `short:"n" help:"Number of recent builds to keep" default:"20"`
	JSON    bool   `help:"Print JSON instead of a table"`
}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	store, err := openStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	projection := eventstore.NewModuleStateProjection(store, s.Limit)
	if err := projection.Rebuild(context.Background()); err != nil {
		return errors.WrapError(err, errors.CategoryEventStore, "failed to rebuild module state").Build()
	}
	return s.print(os.Stdout, projection)
}

func (s *StatusCmd) print(w io.Writer, projection *eventstore.ModuleStateProjection) error {
	if s.BuildID == "" {
		history := projection.GetHistory()
		if s.JSON {
			return writeJSON(w, history)
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "BUILD\tSTATUS\tRESULT\tMODULES\tSTARTED\tDURATION")
		for _, b := range history {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
				b.BuildID, b.Status, orDash(string(b.Result)), len(b.Modules),
				b.StartedAt.Format(time.RFC3339), b.Duration.Round(time.Millisecond))
		}
		return tw.Flush()
	}

	status, ok := projection.GetBuild(s.BuildID)
	if !ok {
		return errors.ValidationError(fmt.Sprintf("unknown build %q", s.BuildID)).Build()
	}
	modules := status.ModuleList()
	if s.JSON {
		return writeJSON(w, struct {
			*eventstore.BuildStatus
			Modules []eventstore.ModuleStatus `json:"modules"`
		}{status, modules})
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tSTATE\tRESULT\tSTEPS")
	for _, m := range modules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", m.Module, m.State, orDash(string(m.Result)), len(m.Steps))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
