package flow

import (
	"context"
	"hash/fnv"
	"maps"
	"slices"

	"github.com/ormasoftchile/archetype/pkg/ast"
	"github.com/ormasoftchile/archetype/pkg/value"
	"github.com/ormasoftchile/archetype/pkg/walker"
)

// CanCompleteWithDefaults reports whether s reaches Ready from answers
// when every optional input takes its default. It runs an independent
// flow and never modifies answers.
func CanCompleteWithDefaults(ctx context.Context, s *ast.Script, loader walker.Loader, answers, defaults map[string]value.Value) (bool, error) {
	nested := New(s, loader, Options{SkipOptional: true, Defaults: defaults})
	st, err := nested.Build(ctx, maps.Clone(answers))
	if err != nil {
		return false, err
	}
	return st == Ready, nil
}

func (f *Flow) completable(ctx context.Context, answers map[string]value.Value) (bool, error) {
	h := hashAnswers(answers)
	if ok, hit := f.memo[h]; hit {
		return ok, nil
	}
	ok, err := CanCompleteWithDefaults(ctx, f.script, f.loader, answers, f.opts.Defaults)
	if err != nil {
		return false, err
	}
	f.memo[h] = ok
	return ok, nil
}

func hashAnswers(answers map[string]value.Value) uint64 {
	h := fnv.New64a()
	for _, k := range slices.Sorted(maps.Keys(answers)) {
		v := answers[k]
		h.Write([]byte(k))
		h.Write([]byte{0, byte(v.Kind())})
		for _, s := range v.Values() {
			h.Write([]byte(s))
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{0})
	}
	return h.Sum64()
}
