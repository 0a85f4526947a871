package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/archetype/pkg/config"
	"github.com/ormasoftchile/archetype/pkg/ctxlog"
	"github.com/ormasoftchile/archetype/pkg/flow"
	"github.com/ormasoftchile/archetype/pkg/generator"
	"github.com/ormasoftchile/archetype/pkg/prompt"
	"github.com/ormasoftchile/archetype/pkg/script"
	"github.com/ormasoftchile/archetype/pkg/trace"
	"github.com/ormasoftchile/archetype/pkg/value"
)

// flowFlags are the flags shared by commands that build a flow.
type flowFlags struct {
	workspace    string
	logLevel     string
	prompter     string
	skipOptional bool
	trace        string
	sets         []string
	defaults     []string
	answers      string
}

func (ff *flowFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ff.workspace, "workspace", ".", "Workspace directory holding .archetype/config.yaml")
	cmd.Flags().StringVar(&ff.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	cmd.Flags().StringVar(&ff.prompter, "prompter", "", "How to ask for inputs: line, tui or none (overrides config)")
	cmd.Flags().BoolVar(&ff.skipOptional, "skip-optional", false, "Use defaults for optional inputs instead of asking")
	cmd.Flags().StringVar(&ff.trace, "trace", "", "Directory to write a JSONL trace of the run to (overrides config)")
	cmd.Flags().StringArrayVar(&ff.sets, "set", nil, "Answer an input (path=value), repeatable")
	cmd.Flags().StringArrayVar(&ff.defaults, "default", nil, "Set an external default (path=value), repeatable")
	cmd.Flags().StringVar(&ff.answers, "answers", "", "Answers file to resume from and save to")
}

// settings merges the workspace configuration with the flags. Flags win.
func (ff *flowFlags) settings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(ff.workspace)
	if err != nil {
		return nil, err
	}
	if ff.logLevel != "" {
		cfg.LogLevel = ff.logLevel
	}
	if ff.prompter != "" {
		cfg.Prompter = ff.prompter
	}
	if ff.trace != "" {
		cfg.Trace = ff.trace
	}
	if ff.skipOptional || (cmd != nil && cmd.Flags().Changed("skip-optional")) {
		cfg.SkipOptional = ff.skipOptional
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is a flow under construction together with what it needs to
// be driven and generated.
type session struct {
	cfg    *config.Config
	fsys   fs.FS
	flow   *flow.Flow
	trace  *trace.Writer
	closer io.Closer
}

func (s *session) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// open loads the script, restores saved answers and runs the first
// build.
func (ff *flowFlags) open(ctx context.Context, cmd *cobra.Command, scriptPath string, stderr io.Writer) (context.Context, *session, error) {
	cfg, err := ff.settings(cmd)
	if err != nil {
		return ctx, nil, err
	}
	log := ctxlog.New(cfg.LogLevel, cfg.LogFormat, stderr)
	ctx = ctxlog.WithLogger(ctx, log)
	s := &session{cfg: cfg}

	if cfg.Trace != "" {
		if err := os.MkdirAll(cfg.Trace, 0o755); err != nil {
			return ctx, nil, fmt.Errorf("create trace dir: %w", err)
		}
		runID := trace.NewRunID()
		s.trace, s.closer, err = trace.NewFileWriter(filepath.Join(cfg.Trace, runID+".jsonl"), runID)
		if err != nil {
			return ctx, nil, err
		}
		log.Info("tracing run", "run_id", runID, "dir", cfg.Trace)
	}

	fsys, name := scriptFS(scriptPath)
	s.fsys = fsys
	loader := script.NewLoader(fsys, script.NewCache(cfg.CacheSize))
	sc, err := loader.Load(name)
	if err != nil {
		s.Close()
		return ctx, nil, err
	}

	defaults, err := cfg.DefaultValues()
	if err != nil {
		s.Close()
		return ctx, nil, err
	}
	extra, err := parseAssignments(ff.defaults)
	if err != nil {
		s.Close()
		return ctx, nil, fmt.Errorf("--default: %w", err)
	}
	for k, v := range extra {
		defaults[k] = v
	}

	answers := make(map[string]value.Value)
	if ff.answers != "" {
		saved, err := flow.LoadAnswers(ff.answers)
		switch {
		case err == nil:
			for k, v := range saved.Values {
				answers[k] = v
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			s.Close()
			return ctx, nil, err
		}
	}
	sets, err := parseAssignments(ff.sets)
	if err != nil {
		s.Close()
		return ctx, nil, fmt.Errorf("--set: %w", err)
	}
	for k, v := range sets {
		answers[k] = v
	}

	s.flow = flow.New(sc, loader, flow.Options{
		SkipOptional: cfg.SkipOptional,
		Defaults:     defaults,
		Trace:        s.trace,
	})
	if _, err := s.flow.Build(ctx, answers); err != nil {
		s.Close()
		return ctx, nil, err
	}
	return ctx, s, nil
}

// save persists the answers when an answers file is in use.
func (ff *flowFlags) save(s *session) error {
	if ff.answers == "" {
		return nil
	}
	return flow.SaveAnswers(ff.answers, s.flow.Snapshot())
}

// drive asks for the remaining inputs with the configured prompter.
func (s *session) drive(ctx context.Context, in io.Reader, out io.Writer) error {
	if s.flow.State() != flow.Waiting {
		return nil
	}
	var p flow.Prompter
	switch s.cfg.Prompter {
	case config.PrompterNone:
		u := s.flow.UnresolvedInputs()[0]
		return fmt.Errorf("input %s (%s) needs an answer: pass --set %s=<value>", u.Path, u.Location, u.Path)
	case config.PrompterTUI:
		p = prompt.NewTUI()
	default:
		rc, ok := in.(io.ReadCloser)
		if !ok {
			rc = io.NopCloser(in)
		}
		line, err := prompt.NewLine(rc, out)
		if err != nil {
			return err
		}
		defer line.Close()
		p = line
	}
	_, err := flow.Drive(ctx, s.flow, p)
	return err
}

// --- generate ---

type generateFlags struct {
	flowFlags
	out    string
	dryRun bool
}

func newGenerateCmd() *cobra.Command {
	gf := &generateFlags{}
	cmd := &cobra.Command{
		Use:   "generate [script.yaml]",
		Short: "Resolve the inputs of a script and generate the project",
		Long: `Build the script with the given answers, ask for the inputs that are
still missing and generate the project once every input has a value.

Answers are given with --set path=value, where path is the dotted input
path (e.g. --set docker.registry=ghcr.io). Lists are comma separated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gf.run(cmd.Context(), cmd, args[0], cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	gf.bind(cmd)
	cmd.Flags().StringVarP(&gf.out, "out", "o", ".", "Directory to generate into")
	cmd.Flags().BoolVar(&gf.dryRun, "dry-run", false, "List the files that would be generated without writing them")
	return cmd
}

func (gf *generateFlags) run(ctx context.Context, cmd *cobra.Command, scriptPath string, in io.Reader, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, s, err := gf.open(ctx, cmd, scriptPath, errOut)
	if err != nil {
		return err
	}
	defer s.Close()

	driveErr := s.drive(ctx, in, out)
	if err := gf.save(s); err != nil {
		return err
	}
	if driveErr != nil {
		return driveErr
	}

	var sink generator.Sink = generator.NewDirSink(gf.out)
	if gf.dryRun {
		sink = generator.NewMemSink()
	}
	g := generator.New(s.fsys, sink, generator.Options{Trace: s.trace})
	written, err := g.Run(ctx, s.flow)
	if err != nil {
		return err
	}
	if err := gf.save(s); err != nil {
		return err
	}

	for _, w := range written {
		fmt.Fprintf(out, "  %s\n", w.Path)
	}
	if gf.dryRun {
		fmt.Fprintf(out, "✓ %d file(s) would be generated\n", len(written))
	} else {
		fmt.Fprintf(out, "✓ generated %d file(s) in %s\n", len(written), gf.out)
	}
	return nil
}

// --- inputs ---

type inputsFlags struct {
	flowFlags
	json bool
}

func newInputsCmd() *cobra.Command {
	inf := &inputsFlags{}
	cmd := &cobra.Command{
		Use:   "inputs [script.yaml]",
		Short: "Show the state of a script's inputs without generating",
		Long: `Build the script with the given answers and report the input it stops at.
With --answers the answers are saved, so repeated calls walk through the
inputs one at a time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inf.run(cmd.Context(), cmd, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	inf.bind(cmd)
	cmd.Flags().BoolVar(&inf.json, "json", false, "Output as JSON")
	return cmd
}

func (inf *inputsFlags) run(ctx context.Context, cmd *cobra.Command, scriptPath string, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, s, err := inf.open(ctx, cmd, scriptPath, errOut)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := inf.save(s); err != nil {
		return err
	}

	f := s.flow
	if inf.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"state":            f.State().String(),
			"can_be_generated": f.CanBeGenerated(),
			"answers":          f.Answers(),
			"unresolved":       f.UnresolvedInputs(),
		})
	}

	fmt.Fprintf(out, "state: %s\n", f.State())
	for _, u := range f.UnresolvedInputs() {
		fmt.Fprintf(out, "next:  %s (%s) at %s\n", u.Path, u.Type, u.Location)
		fmt.Fprintf(out, "       %s\n", u.Question())
		if !u.Default.IsEmpty() {
			fmt.Fprintf(out, "       default: %s\n", u.Default)
		}
		if len(u.Options) > 0 {
			fmt.Fprint(out, prompt.OptionTable(u.Options))
		}
	}
	if f.State() == flow.Waiting && f.CanBeGenerated() {
		fmt.Fprintln(out, "the remaining inputs are optional: --skip-optional generates with defaults")
	}
	return nil
}

// parseAssignments parses path=value pairs. Values stay text; the flow
// converts them to the type of their input.
func parseAssignments(pairs []string) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected path=value", p)
		}
		out[k] = value.String(v)
	}
	return out, nil
}

// scriptFS returns the filesystem rooted at the script's directory and
// the script's name inside it. Sources and invoked scripts resolve
// against the same root.
func scriptFS(scriptPath string) (fs.FS, string) {
	return os.DirFS(filepath.Dir(scriptPath)), filepath.Base(scriptPath)
}
