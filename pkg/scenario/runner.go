package scenario

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ormasoftchile/archetype/pkg/ctxlog"
	"github.com/ormasoftchile/archetype/pkg/flow"
	"github.com/ormasoftchile/archetype/pkg/generator"
	"github.com/ormasoftchile/archetype/pkg/model"
	"github.com/ormasoftchile/archetype/pkg/script"
)

// Info describes a discovered scenario directory.
type Info struct {
	Name    string // directory name
	Dir     string
	HasSpec bool // whether scenario.yaml exists
}

// Discover finds the scenarios of a script by convention:
// {script-dir}/scenarios/{script-name}/*/scenario.yaml
func Discover(scriptPath string) ([]Info, error) {
	dir := filepath.Dir(scriptPath)
	name := strings.TrimSuffix(filepath.Base(scriptPath), filepath.Ext(scriptPath))

	base := filepath.Join(dir, "scenarios", name)
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read scenarios directory: %w", err)
	}

	var out []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		d := filepath.Join(base, entry.Name())
		_, err := os.Stat(filepath.Join(d, FileName))
		out = append(out, Info{Name: entry.Name(), Dir: d, HasSpec: err == nil})
	}
	return out, nil
}

// Runner executes scenarios. Scripts and their sources are read from the
// script's directory.
type Runner struct {
	Timeout   time.Duration // per scenario
	Renderers *generator.Registry
}

// RunAll executes all scenarios of a script.
func (r *Runner) RunAll(ctx context.Context, scriptPath string, failFast bool) (*Output, error) {
	fsys, name, err := r.open(scriptPath)
	if err != nil {
		return nil, err
	}
	scenarios, err := Discover(scriptPath)
	if err != nil {
		return nil, err
	}

	out := &Output{Script: scriptPath}
	for _, sc := range scenarios {
		res := r.runInfo(ctx, fsys, name, sc)
		res.Script = scriptPath
		out.Scenarios = append(out.Scenarios, res)

		switch res.Status {
		case StatusPassed:
			out.Summary.Passed++
		case StatusFailed:
			out.Summary.Failed++
		case StatusSkipped:
			out.Summary.Skipped++
		case StatusError:
			out.Summary.Errors++
		}
		out.Summary.Total++

		if failFast && (res.Status == StatusFailed || res.Status == StatusError) {
			break
		}
	}
	return out, nil
}

// RunScenario executes a single named scenario of a script.
func (r *Runner) RunScenario(ctx context.Context, scriptPath, scenarioName string) (*Result, error) {
	fsys, name, err := r.open(scriptPath)
	if err != nil {
		return nil, err
	}
	scenarios, err := Discover(scriptPath)
	if err != nil {
		return nil, err
	}
	for _, sc := range scenarios {
		if sc.Name == scenarioName {
			res := r.runInfo(ctx, fsys, name, sc)
			res.Script = scriptPath
			return &res, nil
		}
	}
	return nil, fmt.Errorf("scenario %q not found", scenarioName)
}

// open validates the script and returns the filesystem rooted at its
// directory with the script's name inside it.
func (r *Runner) open(scriptPath string) (fs.FS, string, error) {
	fsys := os.DirFS(filepath.Dir(scriptPath))
	name := filepath.Base(scriptPath)
	if _, errs := script.ValidateFile(fsys, name); script.HasErrors(errs) {
		return nil, "", fmt.Errorf("script validation failed: %s", firstError(errs))
	}
	return fsys, name, nil
}

func (r *Runner) runInfo(ctx context.Context, fsys fs.FS, name string, sc Info) Result {
	start := time.Now()
	res := Result{Scenario: sc.Name, Dir: sc.Dir}

	if !sc.HasSpec {
		res.Status = StatusSkipped
		res.DurationMs = time.Since(start).Milliseconds()
		return res
	}
	spec, err := LoadSpec(filepath.Join(sc.Dir, FileName))
	if err != nil {
		res.Status = StatusError
		res.Error = err.Error()
		res.DurationMs = time.Since(start).Milliseconds()
		return res
	}
	return r.finish(ctx, fsys, name, spec, res, start)
}

// finish replays spec and fills in the status and assertions of res.
func (r *Runner) finish(ctx context.Context, fsys fs.FS, name string, spec *Spec, res Result, start time.Time) Result {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	obs, err := r.Replay(ctx, fsys, name, spec)
	res.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Status = StatusError
		res.Error = fmt.Sprintf("replay: %v", err)
		return res
	}
	res.Assertions = Evaluate(spec, obs)
	res.Status = StatusPassed
	if HasFailures(res.Assertions) {
		res.Status = StatusFailed
	}
	return res
}

// Run replays spec against the script name in fsys and evaluates it.
func (r *Runner) Run(ctx context.Context, fsys fs.FS, name string, spec *Spec) Result {
	start := time.Now()
	return r.finish(ctx, fsys, name, spec, Result{Script: name}, start)
}

// Replay builds the script with the scenario's answers and, when the
// flow is ready, generates into memory.
func (r *Runner) Replay(ctx context.Context, fsys fs.FS, name string, spec *Spec) (*Observed, error) {
	log := ctxlog.FromContext(ctx)
	answers, err := values(spec.Values)
	if err != nil {
		return nil, fmt.Errorf("values: %w", err)
	}
	defaults, err := values(spec.Defaults)
	if err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}

	loader := script.NewLoader(fsys, script.NewCache(0))
	s, err := loader.Load(name)
	if err != nil {
		return nil, err
	}
	f := flow.New(s, loader, flow.Options{SkipOptional: spec.SkipOptional, Defaults: defaults})
	st, err := f.Build(ctx, answers)
	if err != nil {
		return nil, err
	}

	obs := &Observed{State: st.String(), Values: make(map[string]any), Files: map[string]string{}}
	if st == flow.Waiting {
		for k, v := range f.Answers() {
			obs.Values[k] = v.Any()
		}
		if u := f.UnresolvedInputs(); len(u) > 0 {
			obs.Unresolved = u[0].Path
		}
		log.Debug("scenario waiting", "script", name, "input", obs.Unresolved)
		return obs, nil
	}

	res, err := f.Result()
	if err != nil {
		return nil, err
	}
	for k, v := range res.Context.Values() {
		obs.Values[k] = v.Any()
	}
	merged, err := model.ResolveResult(res)
	if err != nil {
		return nil, err
	}
	obs.Model = merged.Data()

	sink := generator.NewMemSink()
	g := generator.New(fsys, sink, generator.Options{Renderers: r.Renderers})
	if _, err := g.Run(ctx, f); err != nil {
		return nil, err
	}
	obs.Files = sink.Files()
	return obs, nil
}

func firstError(errs []*script.ValidationError) string {
	for _, e := range errs {
		if e.Severity != script.SeverityWarning {
			return e.Error()
		}
	}
	return ""
}
