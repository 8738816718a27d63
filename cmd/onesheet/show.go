package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/dusk-indust/onesheet/internal/export"
)

var nowUTC = func() time.Time { return time.Now().UTC() }

func (a *app) runShow(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("show takes one target id")
	}
	agg, err := a.store.Load(ctx, args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(agg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = a.stdout.Write(append(out, '\n'))
	return err
}

func (a *app) runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	format := fs.String("format", "md", "output format: md or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("export takes one target id")
	}
	targetID := fs.Arg(0)

	agg, err := a.store.Load(ctx, targetID)
	if err != nil {
		return err
	}
	switch *format {
	case "md":
		_, err = fmt.Fprint(a.stdout, export.Markdown(targetID, agg))
		return err
	case "json":
		return export.WriteJSON(a.stdout, export.Build(targetID, agg, nil, nowUTC()))
	default:
		return usageError("unknown format %q", *format)
	}
}

func (a *app) runList(ctx context.Context) error {
	targets, err := a.store.Targets(ctx)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Fprintln(a.stdout, "No OneSheets stored.")
		return nil
	}
	for _, t := range targets {
		fmt.Fprintln(a.stdout, t)
	}
	return nil
}

func (a *app) runHooks(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("hooks takes a target id and a concept id")
	}
	hooks, err := a.store.HooksForConcept(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if len(hooks) == 0 {
		fmt.Fprintf(a.stdout, "No hooks linked to %s.\n", args[1])
		return nil
	}
	for _, h := range hooks {
		fmt.Fprintf(a.stdout, "  %-6s %-16s %s\n", h.Kind, h.ID, h.Text)
	}
	return nil
}
