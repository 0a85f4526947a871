package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/archetype/pkg/flow"
	"github.com/ormasoftchile/archetype/pkg/value"
)

// readFunc reads one answer, offering completion over the given items.
type readFunc func(prompt string, completions []string) (string, error)

// Line asks for one input at a time on a terminal line. It implements
// flow.Prompter and flow.ErrorReporter.
type Line struct {
	out  io.Writer
	read readFunc
	rl   *readline.Instance
	step string
}

// NewLine returns a line prompter reading from in and writing to out.
func NewLine(in io.ReadCloser, out io.Writer) (*Line, error) {
	rl, err := readline.NewEx(&readline.Config{
		Stdin:           in,
		Stdout:          out,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("readline init: %w", err)
	}
	l := &Line{out: out, rl: rl}
	l.read = l.readline
	return l, nil
}

func (l *Line) readline(prompt string, completions []string) (string, error) {
	items := make([]readline.PrefixCompleterInterface, len(completions))
	for i, c := range completions {
		items[i] = readline.PcItem(c)
	}
	l.rl.Config.AutoComplete = readline.NewPrefixCompleter(items...)
	l.rl.SetPrompt(prompt)
	return l.rl.Readline()
}

// Close releases the terminal.
func (l *Line) Close() error {
	if l.rl == nil {
		return nil
	}
	return l.rl.Close()
}

// Prompt prints the description of in and reads the answer.
func (l *Line) Prompt(ctx context.Context, in flow.UnresolvedInput) (value.Value, error) {
	if err := ctx.Err(); err != nil {
		return value.Empty, err
	}
	fmt.Fprint(l.out, Describe(in, l.step))
	l.step = in.Step

	var completions []string
	switch {
	case len(in.Options) > 0:
		for _, o := range in.Options {
			completions = append(completions, o.Value)
		}
	case in.Kind() == value.KindBool:
		completions = []string{"yes", "no"}
	}

	text, err := l.read(questionLine(in), completions)
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return value.Empty, ErrAborted
		}
		return value.Empty, err
	}
	return Parse(in, text)
}

// Report prints a rejected answer before the input is asked again.
func (l *Line) Report(in flow.UnresolvedInput, err error) {
	fmt.Fprintf(l.out, "  ! %s: %v\n", in.Question(), err)
}

// Describe renders the text shown above the answer line: a step header
// when in starts a new step, the help, and the numbered options.
func Describe(in flow.UnresolvedInput, prevStep string) string {
	var sb strings.Builder
	if in.Step != "" && in.Step != prevStep {
		fmt.Fprintf(&sb, "\n== %s ==\n", in.Step)
		if help := PlainText(in.StepHelp); help != "" {
			sb.WriteString(indent(help, ""))
			sb.WriteByte('\n')
		}
	}
	sb.WriteByte('\n')
	if help := PlainText(in.Help); help != "" {
		sb.WriteString(indent(help, "  "))
		sb.WriteByte('\n')
	}
	sb.WriteString(OptionTable(in.Options))
	return sb.String()
}

// OptionTable lists options as numbered rows with the labels aligned in
// a column. Wide runes are measured by display width.
func OptionTable(options []flow.Choice) string {
	if len(options) == 0 {
		return ""
	}
	width := 0
	for _, o := range options {
		width = max(width, runewidth.StringWidth(o.Value))
	}
	var sb strings.Builder
	for i, o := range options {
		fmt.Fprintf(&sb, "  %2d) ", i+1)
		if o.Label == "" || o.Label == o.Value {
			sb.WriteString(o.Value)
		} else {
			sb.WriteString(runewidth.FillRight(o.Value, width))
			sb.WriteString("  ")
			sb.WriteString(o.Label)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func questionLine(in flow.UnresolvedInput) string {
	var sb strings.Builder
	sb.WriteString(in.Question())
	switch {
	case in.Kind() == value.KindBool:
		sb.WriteString(" (y/n)")
	case in.Kind() == value.KindList && len(in.Options) > 0:
		sb.WriteString(" (comma separated)")
	}
	switch {
	case !in.Default.IsEmpty():
		fmt.Fprintf(&sb, " [%s]", in.Default)
	case in.Placeholder != "":
		fmt.Fprintf(&sb, " (%s)", in.Placeholder)
	}
	if in.Optional {
		sb.WriteString(" (optional)")
	}
	sb.WriteString(": ")
	return sb.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
