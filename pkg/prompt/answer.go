// Package prompt implements the interactive front ends that answer the
// inputs a flow stops at: a line-oriented prompter built on readline and
// a full-screen prompter built on Bubble Tea.
package prompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ormasoftchile/archetype/pkg/flow"
	"github.com/ormasoftchile/archetype/pkg/value"
)

var (
	// ErrNoAnswer is returned for a blank answer to an input that has no
	// default. Drive asks again.
	ErrNoAnswer = fmt.Errorf("an answer is required: %w", flow.ErrRetry)
	// ErrAborted is returned when the user interrupts a prompt.
	ErrAborted = errors.New("prompt aborted")
)

// Parse converts typed text into an answer for in. A blank answer selects
// the default. Enum and list items may be given by value, label or
// 1-based position in the option list.
func Parse(in flow.UnresolvedInput, text string) (value.Value, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		switch {
		case !in.Default.IsEmpty():
			return in.Default, nil
		case in.Kind() == value.KindList:
			return value.List(), nil
		case in.Kind() == value.KindString && in.Optional && len(in.Options) == 0:
			return value.String(""), nil
		}
		return value.Empty, ErrNoAnswer
	}

	switch in.Kind() {
	case value.KindBool:
		b, err := value.ParseBool(text)
		if err != nil {
			return value.Empty, fmt.Errorf("%w: %v", flow.ErrInvalidValue, err)
		}
		return value.Bool(b), nil
	case value.KindList:
		items := value.ParseList(text)
		for i, item := range items {
			items[i] = choose(in.Options, item)
		}
		return value.List(items...), nil
	}
	if len(in.Options) > 0 {
		return value.String(choose(in.Options, text)), nil
	}
	return value.String(text), nil
}

// choose maps a position or label to its option value. Anything else is
// returned unchanged for the flow to validate.
func choose(options []flow.Choice, s string) string {
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(options) {
		return options[n-1].Value
	}
	for _, o := range options {
		if strings.EqualFold(o.Value, s) {
			return o.Value
		}
	}
	for _, o := range options {
		if o.Label != "" && strings.EqualFold(o.Label, s) {
			return o.Value
		}
	}
	return s
}
