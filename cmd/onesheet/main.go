package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// CLI flags shared by every command.
type cliFlags struct {
	ProjectRoot string
	StorePath   string
	ResearchDir string
	Agent       string
	Model       string
	Verbose     bool
	Version     bool
}

// version is set by goreleaser at build time.
var version = "dev"

const usage = `usage: onesheet [flags] <command> [args]

commands:
  generate <request.json>          run the five creative stages for a target
  show <target-id>                 print the stored OneSheet as JSON
  export [-format md|json] <id>    export the stored OneSheet
  list                             list targets with a stored OneSheet
  hooks <target-id> <concept-id>   list hooks linked to a concept
  serve [-addr addr]               serve the HTTP API
  serve-mcp [-http addr]           serve the MCP tools over stdio or HTTP
  serve-agent [-addr addr]         serve the draft agent over A2A
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(os.Stderr, usage)
		}
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var flags cliFlags

	fs := flag.NewFlagSet("onesheet", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&flags.ProjectRoot, "project-root", ".", "directory holding onesheet.yml")
	fs.StringVar(&flags.StorePath, "store", "", "KuzuDB directory (overrides storePath; empty keeps OneSheets in memory)")
	fs.StringVar(&flags.ResearchDir, "research-dir", "", "directory of <target-id>.json research bundles (default <project-root>/research)")
	fs.StringVar(&flags.Agent, "agent", "", "A2A endpoint of the generation agent (overrides agentEndpoint)")
	fs.StringVar(&flags.Model, "model", "", "model id passed to the agent (overrides model)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Fprintln(stdout, version)
		return nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return errUsage
	}

	a, err := newApp(flags, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "generate":
		return a.runGenerate(ctx, cmdArgs)
	case "show":
		return a.runShow(ctx, cmdArgs)
	case "export":
		return a.runExport(ctx, cmdArgs)
	case "list":
		return a.runList(ctx)
	case "hooks":
		return a.runHooks(ctx, cmdArgs)
	case "serve":
		return a.runServe(ctx, cmdArgs)
	case "serve-mcp":
		return a.runServeMCP(ctx, cmdArgs)
	case "serve-agent":
		return a.runServeAgent(ctx, cmdArgs)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}
