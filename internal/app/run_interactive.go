package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"

	"github.com/hoanghonghuy/commita/internal/ai"
	"github.com/hoanghonghuy/commita/internal/orchestrator"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")) // Pinkish

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")). // Purplish
			Padding(1, 2).
			MarginBottom(1)

	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Terminal asks questions with huh forms and prints styled status lines.
type Terminal struct {
	out io.Writer
}

var _ orchestrator.Prompter = (*Terminal)(nil)

func NewTerminal(out io.Writer) *Terminal {
	if out == nil {
		out = os.Stdout
	}
	return &Terminal{out: out}
}

// run shows a single-field form. Ctrl+C and a cancelled context become ai.ErrAborted.
func run(ctx context.Context, field huh.Field) error {
	err := huh.NewForm(huh.NewGroup(field)).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) {
		return errors.WithStack(ai.ErrAborted)
	}
	return err
}

func (t *Terminal) ChooseOne(ctx context.Context, message string, choices []orchestrator.Choice) (string, error) {
	opts := make([]huh.Option[string], 0, len(choices))
	for _, c := range choices {
		opts = append(opts, huh.NewOption(c.Label, c.Value))
	}

	var selected string
	err := run(ctx, huh.NewSelect[string]().
		Title(message).
		Options(opts...).
		Value(&selected))
	return selected, err
}

func (t *Terminal) Confirm(ctx context.Context, message string, def bool) (bool, error) {
	answer := def
	err := run(ctx, huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&answer))
	return answer, err
}

func (t *Terminal) AskText(ctx context.Context, message, help string, secret bool) (string, error) {
	var text string
	input := huh.NewInput().
		Title(message).
		Description(help).
		Value(&text)
	if secret {
		input = input.EchoMode(huh.EchoModePassword)
	}
	err := run(ctx, input)
	return strings.TrimSpace(text), err
}

func (t *Terminal) Info(message string) {
	fmt.Fprintln(t.out, infoStyle.Render(message))
}

func (t *Terminal) Warn(message string) {
	fmt.Fprintln(t.out, warnStyle.Render(message))
}

func (t *Terminal) Success(message string) {
	fmt.Fprintln(t.out, successStyle.Render(message))
}

func (t *Terminal) Error(message string) {
	fmt.Fprintln(t.out, errorStyle.Render(message))
}

// Print writes plain text.
func (t *Terminal) Print(message string) {
	fmt.Fprintln(t.out, message)
}

// ShowSuggestion displays the generated message in a box.
func (t *Terminal) ShowSuggestion(commitMsg string) {
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, titleStyle.Render("Suggested Commit Message:"))
	fmt.Fprintln(t.out, boxStyle.Render(strings.TrimSpace(commitMsg)))
}

// Action is what the user wants done with a suggestion.
type Action int

const (
	ActionCommit Action = iota
	ActionEdit
	ActionAbort
)

// ConfirmCommit asks whether to commit, edit or abort.
func (t *Terminal) ConfirmCommit(ctx context.Context) (Action, error) {
	selected, err := t.ChooseOne(ctx, "Use this as the commit message?", []orchestrator.Choice{
		{Value: "commit", Label: "commit - Yes, commit the changes"},
		{Value: "abort", Label: "abort - No, abort the commit"},
		{Value: "edit", Label: "edit - Edit the commit message manually"},
	})
	if err != nil {
		return ActionAbort, err
	}

	switch selected {
	case "commit":
		return ActionCommit, nil
	case "edit":
		return ActionEdit, nil
	default:
		return ActionAbort, nil
	}
}
