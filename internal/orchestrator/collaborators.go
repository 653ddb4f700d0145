package orchestrator

import "context"

// Choice is one option offered by Prompter.ChooseOne.
type Choice struct {
	Value string
	Label string
}

// Prompter asks the user things. A cancelled prompt returns an error
// matching ai.ErrAborted.
type Prompter interface {
	ChooseOne(ctx context.Context, message string, choices []Choice) (string, error)
	Confirm(ctx context.Context, message string, def bool) (bool, error)
	// AskText reads free text. help is shown alongside the question; secret
	// hides the input.
	AskText(ctx context.Context, message, help string, secret bool) (string, error)

	Info(message string)
	Warn(message string)
}

// Editor lets the user edit text in an external program. When no editor
// can be run it returns initial unchanged.
type Editor interface {
	Edit(ctx context.Context, initial, tempName, editor string) (string, error)
}
