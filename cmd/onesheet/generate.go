package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/dusk-indust/onesheet/internal/creative"
	"github.com/dusk-indust/onesheet/internal/export"
	"github.com/dusk-indust/onesheet/internal/orchestrator"
	"github.com/dusk-indust/onesheet/internal/research"
)

func (a *app) runGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	researchFile := fs.String("research", "", "research bundle for the request's target (default <research-dir>/<target-id>.json)")
	format := fs.String("format", "json", "output format: json or md")
	quiet := fs.Bool("quiet", false, "suppress progress lines")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("generate takes one request file")
	}
	if *format != "json" && *format != "md" {
		return usageError("unknown format %q", *format)
	}

	req, err := a.readRequest(fs.Arg(0))
	if err != nil {
		return err
	}

	var sources research.Sources
	if *researchFile != "" {
		sources, err = research.LoadFile(*researchFile, req.TargetID)
	} else {
		sources, err = research.LoadDir(a.researchDir())
	}
	if err != nil {
		return err
	}

	reporter := orchestrator.NewProgressReporter()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for ev := range reporter.Subscribe() {
			if *quiet {
				continue
			}
			if def, ok := creative.Lookup(ev.Stage); ok && ev.Status == orchestrator.StatusInProgress {
				fmt.Fprintln(a.stderr, headerStyle.Render(orchestrator.FormatStageHeader(ev.TargetID, def)))
			}
			fmt.Fprintln(a.stderr, renderProgress(ev))
		}
	}()

	res, runErr := a.orchestrator(sources, reporter.Emit).Run(ctx, req)
	reporter.Close()
	<-printed
	if res == nil {
		return runErr
	}

	switch {
	case errors.Is(runErr, orchestrator.ErrNotPersisted):
		fmt.Fprintln(a.stderr, warnStyle.Render("warning: "+runErr.Error()))
		runErr = nil
	case errors.Is(runErr, orchestrator.ErrCanceled):
		fmt.Fprintln(a.stderr, warnStyle.Render("canceled; printing partial result"))
	case runErr == nil && !*quiet:
		fmt.Fprintln(a.stderr, mutedStyle.Render(fmt.Sprintf("saved OneSheet for %s (run %s)", res.TargetID, res.RunID)))
	}

	if *format == "md" {
		fmt.Fprint(a.stdout, export.Markdown(res.TargetID, res.Aggregate))
		return runErr
	}
	snap := res.Snapshot
	if err := export.WriteJSON(a.stdout, export.Build(res.TargetID, res.Aggregate, &snap, nowUTC())); err != nil {
		return err
	}
	return runErr
}

// readRequest decodes a generation request file. Context flags and model id
// fall back to onesheet.yml when the file omits them.
func (a *app) readRequest(path string) (orchestrator.GenerationRequest, error) {
	var req orchestrator.GenerationRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("parse request %s: %w", path, err)
	}

	var probe struct {
		ContextFlags json.RawMessage `json:"contextFlags"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return req, fmt.Errorf("parse request %s: %w", path, err)
	}
	return a.withDefaults(req, len(probe.ContextFlags) > 0), nil
}
