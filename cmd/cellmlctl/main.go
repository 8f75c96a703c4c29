package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/prometheus/client_golang/prometheus"

	"cellmlhub/internal/logging"
	"cellmlhub/internal/observability"
	"cellmlhub/pkg/cellmlhub"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "import":
		return runImport(ctx, args[1:])
	case "list":
		return runList(ctx, args[1:])
	case "validate":
		return runValidate(ctx, args[1:])
	case "errors":
		return runErrors(ctx, args[1:])
	case "copy":
		return runCopy(ctx, args[1:])
	case "clone":
		return runClone(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	case "rename-units":
		return runRenameUnits(ctx, args[1:])
	case "connect":
		return runConnect(ctx, args[1:], true)
	case "disconnect":
		return runConnect(ctx, args[1:], false)
	case "export":
		return runExport(ctx, args[1:])
	case "symbol":
		return runSymbol(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type commandFunc func(ctx context.Context, client *cellmlhub.Client, s settings) error

// withClient resolves the shared settings, builds the logger, tracer and
// client, and runs fn. Metrics are written after fn even when it fails.
func withClient(ctx context.Context, common *commonFlags, fn commandFunc) (err error) {
	s, err := common.resolve(os.LookupEnv)
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(logging.Config{Level: s.LogLevel, Format: s.LogFormat, Path: s.LogFile})
	if err != nil {
		return err
	}
	defer func() {
		_ = closeLog()
	}()

	tp, shutdown, err := observability.NewTracerProvider(observability.TracingConfig{
		Enabled:     s.Trace != "" && s.Trace != "none",
		ServiceName: "cellmlctl",
		Exporter:    s.Trace,
	})
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(ctx, shutdown, logger)

	client, err := cellmlhub.New(cellmlhub.Options{
		StoreKind:      s.Store,
		DBPath:         s.DBPath,
		DSN:            s.DSN,
		Logger:         &logger,
		Registerer:     prometheus.NewRegistry(),
		TracerProvider: tp,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	err = fn(ctx, client, s)
	if s.MetricsOut != "" {
		if werr := client.WriteMetrics(s.MetricsOut); werr != nil && err == nil {
			err = fmt.Errorf("write metrics: %w", werr)
		}
	}
	return err
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withClient(ctx, common, func(ctx context.Context, client *cellmlhub.Client, s settings) error {
		if err := client.Init(ctx); err != nil {
			return err
		}
		fmt.Printf("initialized store=%s\n", s.Store)
		return nil
	})
}

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	format := fs.String("format", cellmlhub.FormatYAML, "document format")
	jsonOut := fs.Bool("json", false, "emit JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("import requires one document path (use - for stdin)")
	}
	path := fs.Arg(0)

	return withClient(ctx, common, func(ctx context.Context, client *cellmlhub.Client, s settings) error {
		if err := requireActor(s); err != nil {
			return err
		}
		req := cellmlhub.ImportRequest{Path: path, Format: *format, Actor: s.Actor}
		if path == "-" {
			req.Path = ""
			req.Document = os.Stdin
		}
		result, err := client.Import(ctx, req)
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(result)
		}
		fmt.Printf("imported model_id=%s warnings=%d\n", result.ModelID, len(result.Warnings))
		for _, warning := range result.Warnings {
			fmt.Printf("warning: %s\n", warning)
		}
		return nil
	})
}

func runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "emit JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withClient(ctx, common, func(ctx context.Context, client *cellmlhub.Client, s settings) error {
		models, err := client.Models(ctx, s.Actor)
		if err != nil {
			return err
		}
		if *jsonOut {
			if models == nil {
				models = []cellmlhub.ModelSummary{}
			}
			return writeJSON(models)
		}
		if len(models) == 0 {
			fmt.Println("no models found")
			return nil
		}
		for _, m := range models {
			fmt.Printf("model_id=%s name=%s owner=%s components=%s units=%s status=%s\n",
				m.ID, m.Name, m.Owner, humanize.Comma(int64(m.Components)), humanize.Comma(int64(m.Units)), modelStatus(m))
		}
		return nil
	})
}

func modelStatus(m cellmlhub.ModelSummary) string {
	if !m.Checked {
		return "unchecked"
	}
	checked := humanize.Time(m.CheckedAt)
	if m.Valid {
		return fmt.Sprintf("valid (checked %s)", checked)
	}
	return fmt.Sprintf("invalid, %s (checked %s)", english.Plural(m.ErrorCount, "error", ""), checked)
}

func runValidate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "emit JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := refArg(fs, "validate")
	if err != nil {
		return err
	}

	return withClient(ctx, common, func(ctx context.Context, client *cellmlhub.Client, _ settings) error {
		result, err := client.Validate(ctx, cellmlhub.ValidateRequest{Ref: ref})
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(result)
		}
		status := "valid"
		if !result.Valid {
			status = "invalid"
		}
		fmt.Printf("%s %s: %s, %s checked %s\n",
			result.Ref, status,
			english.Plural(result.ErrorCount, "error", ""),
			english.Plural(len(result.Cycles), "cycle", ""),
			humanize.Time(result.CheckedAt))
		for _, cycle := range result.Cycles {
			fmt.Printf("cycle: %s\n", cycle.Description)
		}
		if result.Tree != nil && result.Tree.Count > 0 {
			printTree(os.Stdout, result.Tree, 0)
		}
		return nil
	})
}

func runErrors(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("errors", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "emit JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := refArg(fs, "errors")
	if err != nil {
		return err
	}

	return withClient(ctx, common, func(ctx context.Context, client *cellmlhub.Client, _ settings) error {
		tree, err := client.Errors(ctx, ref)
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(tree)
		}
		if tree.Count == 0 {
			fmt.Printf("%s: no errors recorded\n", ref)
			return nil
		}
		printTree(os.Stdout, tree, 0)
		return nil
	})
}

func printTree(w io.Writer, node *cellmlhub.ErrorNode, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s %q: %s\n", indent, node.Ref, node.Name, english.Plural(node.Count, "error", ""))
	for _, issue := range node.Issues {
		line := fmt.Sprintf("%s  - %s", indent, issue.Hint)
		if issue.SpecRef != "" {
			line += fmt.Sprintf(" [%s]", issue.SpecRef)
		}
		fmt.Fprintln(w, line)
	}
	for _, child := range node.Children {
		printTree(w, child, depth+1)
	}
}

func runCopy(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("copy", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	strategy := fs.String("strategy", "shallow", "copy strategy: shallow|link|deep")
	into := fs.String("into", "", "existing entity (kind:id) receiving a link or deep copy")
	jsonOut := fs.Bool("json", false, "emit JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	source, err := refArg(fs, "copy")
	if err != nil {
		return err
	}
	var target cellmlhub.Ref
	if *into != "" {
		if target, err = cellmlhub.ParseRef(*into); err != nil {
			return err
		}
	}

	return withClient(ctx, common, func(ctx context.Context, client *cellmlhub.Client, s settings) error {
		if err := requireActor(s); err != nil {
			return err
		}
		out, err := client.Copy(ctx, cellmlhub.CopyRequest{Source: source, Target: target, Strategy: *strategy, Actor: s.Actor})
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(out)
		}
		fmt.Printf("copied %s to %s strategy=%s\n", source, out, *strategy)
		return nil
	})
}

func runClone(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clone", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	suffix := fs.String("suffix", "", "marker appended to cloned names while linking")
	removeSuffix := fs.Bool("remove-suffix", false, "strip the marker from cloned names afterwards")
	jsonOut := fs.Bool("json", false, "emit JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("clone requires one model id")
	}
	modelID := fs.Arg(0)

	return withClient(ctx, common, func(ctx context.Context, client *cellmlhub.Client, s settings) error {
		if err := requireActor(s); err != nil {
			return err
		}
		id, err := client.Clone(ctx, cellmlhub.CloneRequest{
			ModelID:      modelID,
			Actor:        s.Actor,
			Suffix:       *suffix,
			RemoveSuffix: *removeSuffix,
		})
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(map[string]string{"source_id": modelID, "model_id": id})
		}
		fmt.Printf("cloned model_id=%s from=%s\n", id, modelID)
		return nil
	})
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	mode := fs.String("mode", "base", "delete mode: base|deep")
	jsonOut := fs.Bool("json", false, "emit JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := refArg(fs, "delete")
	if err != nil {
		return err
	}

	return withClient(ctx, common, func(ctx context.Context, client *cellmlhub.Client, s settings) error {
		if err := requireActor(s); err != nil {
			return err
		}
		removed, err := client.Delete(ctx, cellmlhub.DeleteRequest{Ref: ref, Mode: *mode, Actor: s.Actor})
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(removed)
		}
		fmt.Printf("deleted %s mode=%s removed=%s\n", ref, *mode, english.Plural(len(removed), "entity", "entities"))
		return nil
	})
}

func runRenameUnits(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rename-units", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "emit JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usageError("rename-units requires a compound unit id and a new name")
	}
	unitID, name := fs.Arg(0), fs.Arg(1)

	return withClient(ctx, common, func(ctx context.Context, client *cellmlhub.Client, s settings) error {
		if err := requireActor(s); err != nil {
			return err
		}
		result, err := client.RenameUnits(ctx, cellmlhub.RenameUnitsRequest{UnitID: unitID, Name: name, Actor: s.Actor})
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(result)
		}
		fmt.Printf("renamed units=%s name=%s symbol=%s\n", unitID, result.Name, result.Symbol)
		return nil
	})
}

func runConnect(ctx context.Context, args []string, connect bool) error {
	name := "connect"
	if !connect {
		name = "disconnect"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	common := bindCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usageError(name + " requires two variable ids")
	}
	req := cellmlhub.ConnectRequest{VariableA: fs.Arg(0), VariableB: fs.Arg(1)}

	return withClient(ctx, common, func(ctx context.Context, client *cellmlhub.Client, s settings) error {
		if err := requireActor(s); err != nil {
			return err
		}
		req.Actor = s.Actor
		if connect {
			if err := client.Connect(ctx, req); err != nil {
				return err
			}
			fmt.Printf("connected %s <-> %s\n", req.VariableA, req.VariableB)
			return nil
		}
		if err := client.Disconnect(ctx, req); err != nil {
			return err
		}
		fmt.Printf("disconnected %s <-> %s\n", req.VariableA, req.VariableB)
		return nil
	})
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	format := fs.String("format", cellmlhub.FormatYAML, "document format")
	out := fs.String("out", "", "output file (defaults to stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("export requires one model id")
	}
	modelID := fs.Arg(0)

	return withClient(ctx, common, func(ctx context.Context, client *cellmlhub.Client, _ settings) error {
		req := cellmlhub.ExportRequest{ModelID: modelID, Format: *format, Path: *out}
		if *out == "" {
			req.Out = os.Stdout
		}
		if err := client.Export(ctx, req); err != nil {
			return err
		}
		if *out != "" {
			fmt.Printf("exported model_id=%s path=%s\n", modelID, *out)
		}
		return nil
	})
}

func runSymbol(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("symbol", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	jsonOut := fs.Bool("json", false, "emit JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("symbol requires one compound unit id")
	}
	unitID := fs.Arg(0)

	return withClient(ctx, common, func(ctx context.Context, client *cellmlhub.Client, _ settings) error {
		result, err := client.Symbol(ctx, unitID)
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(result)
		}
		fmt.Printf("units=%s symbol=%s formula=%s multiplier=%g\n", result.Name, result.Symbol, result.Formula, result.Multiplier)
		return nil
	})
}

func refArg(fs *flag.FlagSet, command string) (cellmlhub.Ref, error) {
	if fs.NArg() != 1 {
		return cellmlhub.Ref{}, usageError(command + " requires one entity reference (kind:id, or a model id)")
	}
	return cellmlhub.ParseRef(fs.Arg(0))
}

func requireActor(s settings) error {
	if s.Actor == "" {
		return errors.New("an actor is required: pass -actor or set " + envPrefix + "ACTOR")
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: cellmlctl <init|import|list|validate|errors|copy|clone|delete|rename-units|connect|disconnect|export|symbol> [flags] [args]", msg)
}
