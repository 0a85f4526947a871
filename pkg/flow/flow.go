// Package flow resolves the inputs of an archetype script.
//
// A Flow is rebuilt from scratch on every call to Build: the walker
// replays the script against the answers given so far and stops at the
// first input that still needs one. Once every reachable input has a
// value the flow is Ready and its Result lists the output blocks to
// generate.
package flow

import (
	"context"
	"fmt"
	"maps"
	"path"
	"slices"

	"github.com/ormasoftchile/archetype/pkg/ast"
	"github.com/ormasoftchile/archetype/pkg/ctxlog"
	"github.com/ormasoftchile/archetype/pkg/scope"
	"github.com/ormasoftchile/archetype/pkg/trace"
	"github.com/ormasoftchile/archetype/pkg/value"
	"github.com/ormasoftchile/archetype/pkg/walker"
)

// State is the lifecycle state of a flow.
type State int

const (
	Initial State = iota
	Waiting
	Ready
	Done
)

func (s State) String() string {
	switch s {
	case Initial:
		return "initial"
	case Waiting:
		return "waiting"
	case Ready:
		return "ready"
	case Done:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	for st := Initial; st <= Done; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return Initial, fmt.Errorf("unknown flow state %q", s)
}

// Options configure a flow.
type Options struct {
	// SkipOptional resolves optional inputs with their defaults instead
	// of asking for them.
	SkipOptional bool
	// Defaults override declared input defaults, keyed by context key.
	Defaults map[string]value.Value
	// Trace receives resolution events. May be nil.
	Trace *trace.Writer
}

// Flow is the resolution state machine of one script. It is not safe for
// concurrent use.
type Flow struct {
	script *ast.Script
	loader walker.Loader
	opts   Options

	state       State
	answers     map[string]value.Value
	unresolved  []UnresolvedInput
	canGenerate bool
	result      *Result
	memo        map[uint64]bool
}

// New returns a flow in the Initial state. loader resolves source and
// exec invocations; it may be nil for self-contained scripts.
func New(s *ast.Script, loader walker.Loader, opts Options) *Flow {
	return &Flow{
		script:  s,
		loader:  loader,
		opts:    opts,
		answers: make(map[string]value.Value),
		memo:    make(map[uint64]bool),
	}
}

// Script returns the root script.
func (f *Flow) Script() *ast.Script { return f.script }

// State returns the current state.
func (f *Flow) State() State { return f.state }

// Answers returns a copy of the external values accumulated so far.
func (f *Flow) Answers() map[string]value.Value { return maps.Clone(f.answers) }

// UnresolvedInputs returns the inputs the last build stopped at. It is
// empty unless the flow is Waiting.
func (f *Flow) UnresolvedInputs() []UnresolvedInput { return slices.Clone(f.unresolved) }

// CanBeGenerated reports whether the flow could reach Ready by taking
// the defaults of every remaining optional input. Once true it stays
// true.
func (f *Flow) CanBeGenerated() bool { return f.canGenerate }

// Result returns the outcome of the resolution.
func (f *Flow) Result() (*Result, error) {
	if f.state != Ready && f.state != Done {
		return nil, fmt.Errorf("%w: state is %s", ErrNotReady, f.state)
	}
	return f.result, nil
}

// MarkDone records that the outputs were materialized.
func (f *Flow) MarkDone() error {
	if f.state != Ready {
		return fmt.Errorf("%w: state is %s", ErrNotReady, f.state)
	}
	f.state = Done
	return nil
}

// Build merges overrides into the accumulated answers and replays the
// script from an empty context. Overrides are keyed by context key and
// replace earlier answers for the same key. On error the flow keeps its
// previous answers and state.
func (f *Flow) Build(ctx context.Context, overrides map[string]value.Value) (State, error) {
	if f.state == Done {
		return Done, ErrDone
	}
	answers := maps.Clone(f.answers)
	maps.Copy(answers, overrides)

	log := ctxlog.FromContext(ctx).With("script", f.script.Path)
	log.Debug("building flow", "answers", len(answers), "skip_optional", f.opts.SkipOptional)
	if err := f.opts.Trace.EmitFlowBuild(f.script.Path, len(answers)); err != nil {
		return f.state, err
	}

	r, c, err := f.run(ctx, answers, f.opts.SkipOptional, f.opts.Trace)
	if err != nil {
		return f.state, err
	}
	f.answers = answers

	if u := r.suspended; u != nil {
		f.state = Waiting
		f.unresolved = []UnresolvedInput{*u}
		f.result = nil
		if err := f.opts.Trace.EmitInputSuspended(u.Path, u.Location, u.Optional); err != nil {
			return f.state, err
		}
		if u.Optional && !f.canGenerate {
			f.canGenerate, err = f.completable(ctx, answers)
			if err != nil {
				log.Warn("completability check failed", "error", err)
			}
		}
		return f.state, nil
	}

	f.state = Ready
	f.unresolved = nil
	f.canGenerate = true
	f.result = &Result{Context: c, Outputs: r.outputs}
	log.Debug("flow ready", "outputs", len(r.outputs))
	return f.state, f.opts.Trace.EmitFlowReady(len(r.outputs))
}

func (f *Flow) run(ctx context.Context, answers map[string]value.Value, skipOptional bool, tw *trace.Writer) (*resolver, *scope.Context, error) {
	c := scope.New(path.Dir(f.script.Path))
	for _, k := range slices.Sorted(maps.Keys(answers)) {
		if err := c.PutExternal(k, answers[k]); err != nil {
			return nil, nil, err
		}
	}
	r := &resolver{
		log:          ctxlog.FromContext(ctx),
		trace:        tw,
		skipOptional: skipOptional,
		defaults:     f.opts.Defaults,
	}
	if err := walker.Walk[*scope.Context](r, f.loader, c, f.script.Body, c); err != nil {
		return nil, nil, err
	}
	return r, c, nil
}
