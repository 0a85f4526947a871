package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ormasoftchile/archetype/pkg/flow"
	"github.com/ormasoftchile/archetype/pkg/value"
)

const helpWidth = 72

// TUI asks for each input in a small Bubble Tea program. It implements
// flow.Prompter and flow.ErrorReporter.
type TUI struct {
	opts    []tea.ProgramOption
	lastErr error
}

// NewTUI returns a full-screen prompter. opts are passed to every
// program it starts.
func NewTUI(opts ...tea.ProgramOption) *TUI {
	return &TUI{opts: opts}
}

// Prompt runs one program for in and returns the answer.
func (t *TUI) Prompt(ctx context.Context, in flow.UnresolvedInput) (value.Value, error) {
	m := newModel(in, t.lastErr)
	t.lastErr = nil

	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, t.opts...)
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		if ctx.Err() != nil {
			return value.Empty, ctx.Err()
		}
		return value.Empty, fmt.Errorf("prompt %s: %w", in.Path, err)
	}
	fm := final.(model)
	if fm.aborted {
		return value.Empty, ErrAborted
	}
	return fm.answer, nil
}

// Report keeps err to show above the next prompt.
func (t *TUI) Report(_ flow.UnresolvedInput, err error) {
	t.lastErr = err
}

// model is the state of one question. Enum, list and boolean inputs are
// answered from a cursor list; text inputs from a text field.
type model struct {
	in      flow.UnresolvedInput
	choices []flow.Choice
	cursor  int
	checked map[int]bool
	input   textinput.Model
	help    string
	err     string
	answer  value.Value
	done    bool
	aborted bool
}

func newModel(in flow.UnresolvedInput, lastErr error) model {
	m := model{
		in:      in,
		checked: make(map[int]bool),
		help:    renderMarkdown(in.Help, helpWidth),
	}
	if lastErr != nil {
		m.err = lastErr.Error()
	}

	switch {
	case in.Kind() == value.KindBool:
		m.choices = []flow.Choice{{Value: "yes"}, {Value: "no"}}
		if b, err := in.Default.AsBool(); err == nil && !b {
			m.cursor = 1
		}
	case len(in.Options) > 0:
		m.choices = in.Options
		defaults := in.Default.Values()
		for i, o := range m.choices {
			for _, d := range defaults {
				if !strings.EqualFold(o.Value, d) {
					continue
				}
				if in.Kind() == value.KindList {
					m.checked[i] = true
				} else {
					m.cursor = i
				}
			}
		}
	default:
		ti := textinput.New()
		ti.Placeholder = in.Placeholder
		if !in.Default.IsEmpty() {
			ti.Placeholder = in.Default.String()
		}
		ti.Prompt = "> "
		ti.Focus()
		m.input = ti
	}
	return m
}

func (m model) Init() tea.Cmd {
	if m.choices == nil {
		return textinput.Blink
	}
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.choices == nil {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, keys.Quit):
		m.aborted = true
		return m, tea.Quit
	case key.Matches(keyMsg, keys.Submit):
		v, err := m.submit()
		if err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.answer, m.done = v, true
		return m, tea.Quit
	}

	if m.choices == nil {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	switch {
	case key.Matches(keyMsg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, keys.Down):
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, keys.Toggle):
		if m.in.Kind() == value.KindList {
			m.checked[m.cursor] = !m.checked[m.cursor]
		}
	}
	return m, nil
}

func (m model) submit() (value.Value, error) {
	switch {
	case m.choices == nil:
		return Parse(m.in, m.input.Value())
	case m.in.Kind() == value.KindBool:
		return value.Bool(m.cursor == 0), nil
	case m.in.Kind() == value.KindList:
		var items []string
		for i, o := range m.choices {
			if m.checked[i] {
				items = append(items, o.Value)
			}
		}
		return value.List(items...), nil
	}
	if len(m.choices) == 0 {
		return value.Empty, errors.New("no options available")
	}
	return value.String(m.choices[m.cursor].Value), nil
}

func (m model) View() string {
	if m.done || m.aborted {
		return ""
	}
	var sb strings.Builder
	if m.in.Step != "" {
		sb.WriteString(stepStyle.Render(m.in.Step))
		sb.WriteString("\n\n")
	}
	q := m.in.Question()
	if m.in.Optional {
		q += dimStyle.Render(" (optional)")
	}
	sb.WriteString(questionStyle.Render(q))
	sb.WriteByte('\n')
	if m.help != "" {
		sb.WriteString(m.help)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')

	if m.choices == nil {
		sb.WriteString(m.input.View())
		sb.WriteByte('\n')
	}
	for i, o := range m.choices {
		mark := "  "
		if i == m.cursor {
			mark = cursorStyle.Render("▸ ")
		}
		sb.WriteString(mark)
		if m.in.Kind() == value.KindList {
			if m.checked[i] {
				sb.WriteString(checkedStyle.Render("[x] "))
			} else {
				sb.WriteString("[ ] ")
			}
		}
		label := o.Value
		if o.Label != "" && o.Label != o.Value {
			label = o.Label + dimStyle.Render(" ("+o.Value+")")
		}
		if i == m.cursor {
			label = cursorStyle.Render(label)
		}
		sb.WriteString(label)
		sb.WriteByte('\n')
	}

	if m.err != "" {
		sb.WriteByte('\n')
		sb.WriteString(errorStyle.Render("✗ " + m.err))
		sb.WriteByte('\n')
	}
	bindings := []key.Binding{keys.Submit, keys.Quit}
	if m.choices != nil {
		bindings = []key.Binding{keys.Up, keys.Down, keys.Submit, keys.Quit}
		if m.in.Kind() == value.KindList {
			bindings = []key.Binding{keys.Up, keys.Down, keys.Toggle, keys.Submit, keys.Quit}
		}
	}
	var hints []string
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, h.Key+" "+h.Desc)
	}
	sb.WriteByte('\n')
	sb.WriteString(dimStyle.Render(strings.Join(hints, " · ")))
	return sb.String()
}
