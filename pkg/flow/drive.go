package flow

import (
	"context"
	"errors"

	"github.com/ormasoftchile/archetype/pkg/value"
)

// Prompter asks the user for the value of one input.
type Prompter interface {
	Prompt(ctx context.Context, in UnresolvedInput) (value.Value, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, in UnresolvedInput) (value.Value, error)

func (p PrompterFunc) Prompt(ctx context.Context, in UnresolvedInput) (value.Value, error) {
	return p(ctx, in)
}

// ErrorReporter is implemented by prompters that show rejected answers
// before asking again.
type ErrorReporter interface {
	Report(in UnresolvedInput, err error)
}

// ErrRetry may be wrapped by a prompter that wants the same input asked
// again. Drive also asks again after an answer fails with
// ErrInvalidValue, up to MaxRetries times.
var ErrRetry = errors.New("retry input")

// MaxRetries bounds the consecutive invalid answers Drive accepts for one
// input.
const MaxRetries = 3

// Drive builds f and answers its unresolved inputs with p until the flow
// is Ready.
func Drive(ctx context.Context, f *Flow, p Prompter) (State, error) {
	state := f.State()
	if state == Initial {
		var err error
		if state, err = f.Build(ctx, nil); err != nil {
			return state, err
		}
	}

	retries := 0
	for state == Waiting {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		in := f.UnresolvedInputs()[0]
		v, err := p.Prompt(ctx, in)
		if err == nil {
			state, err = f.Build(ctx, map[string]value.Value{in.Path: v})
		}
		switch {
		case err == nil:
			retries = 0
		case (errors.Is(err, ErrInvalidValue) || errors.Is(err, ErrRetry)) && retries < MaxRetries:
			retries++
			if r, ok := p.(ErrorReporter); ok {
				r.Report(in, err)
			}
		default:
			return state, err
		}
	}
	return state, nil
}
