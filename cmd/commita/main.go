package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hoanghonghuy/commita/internal/ai"
	"github.com/hoanghonghuy/commita/internal/anthropic"
	"github.com/hoanghonghuy/commita/internal/app"
	"github.com/hoanghonghuy/commita/internal/config"
	"github.com/hoanghonghuy/commita/internal/gemini"
	"github.com/hoanghonghuy/commita/internal/gitx"
	"github.com/hoanghonghuy/commita/internal/logger"
	"github.com/hoanghonghuy/commita/internal/ollama"
	"github.com/hoanghonghuy/commita/internal/openrouter"
	"github.com/hoanghonghuy/commita/internal/orchestrator"
)

type globalFlags struct {
	configPath string
	repo       string
	verbose    bool
}

// session holds what every command shares. The orchestrator is built on
// first use so plain git commands never prompt for providers.
type session struct {
	flags *globalFlags
	log   *zap.Logger
	store *config.Store
	ui    *app.Terminal
}

func (s *session) newApp(ctx context.Context, withOrchestrator bool) (*app.App, error) {
	repoRoot, err := gitx.ResolveRepoRoot(ctx, s.flags.repo)
	if err != nil {
		return nil, errors.WithHint(err, "run commita inside a git repository or pass --repo")
	}
	editor := app.NewExternalEditor(repoRoot, s.log)

	var orch *orchestrator.Orchestrator
	if withOrchestrator {
		orch = orchestrator.New(orchestrator.Config{
			Store:    s.store,
			Registry: s.registry(),
			Prompter: s.ui,
			Editor:   editor,
			Log:      s.log,
		})
		if err := orch.Init(ctx); err != nil {
			return nil, err
		}
	}

	return app.New(app.Config{
		Orchestrator: orch,
		Terminal:     s.ui,
		Editor:       editor,
		Log:          s.log,
		RepoRoot:     repoRoot,
	}), nil
}

func (s *session) registry() *ai.Registry {
	ollamaURL := config.ResolveString("", os.Getenv(config.EnvOllamaHost), "", ollama.DefaultBaseURL)
	return ai.NewRegistry(
		ollama.NewProvider(s.store, ollama.Config{BaseURL: ollamaURL}, s.log),
		gemini.NewProvider(s.store, gemini.Config{}, s.log),
		openrouter.NewProvider(s.store, openrouter.Config{}, s.log),
		anthropic.NewProvider(s.store, anthropic.Config{}, s.log),
	)
}

func newRootCmd(s *session) *cobra.Command {
	var opts app.Options
	suggest := func(cmd *cobra.Command, _ []string) error {
		a, err := s.newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		return a.SuggestAndCommit(cmd.Context(), opts)
	}
	addSuggestFlags := func(cmd *cobra.Command) {
		cmd.Flags().BoolVarP(&opts.Commit, "commit", "c", false, "Commit the changes with the suggested message")
		cmd.Flags().BoolVarP(&opts.Push, "push", "p", false, "Push after committing")
		cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Skip the commit and push confirmations")
		cmd.Flags().StringVar(&opts.HookFile, "hook", "", "Write the accepted message to this file (used by the git hook)")
		cmd.Flags().StringSliceVar(&opts.Ignore, "ignore", nil, "Extra file names or globs to leave out of the diff")
	}

	root := &cobra.Command{
		Use:           "commita",
		Short:         "Suggest git commit messages with an AI model",
		Long:          "commita sends your changes to an AI provider (Ollama, Google, OpenRouter or Anthropic) and suggests a commit message.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          suggest,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s.log = logger.New(s.flags.verbose)
			s.store = config.NewStore(config.ResolvePath(s.flags.configPath))
			s.log.Debug("Using preferences", zap.String("path", s.store.Path()))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&s.flags.configPath, "config", "", "Preferences file (default ~/.config/git-commit/config.json, env COMMITA_CONFIG)")
	root.PersistentFlags().StringVar(&s.flags.repo, "repo", "", "Repository path (default: current directory)")
	root.PersistentFlags().BoolVarP(&s.flags.verbose, "verbose", "v", false, "Debug logging")
	addSuggestFlags(root)

	suggestCmd := &cobra.Command{
		Use:   "suggest-commit",
		Short: "Suggest a commit message for the current changes",
		Args:  cobra.NoArgs,
		RunE:  suggest,
	}
	addSuggestFlags(suggestCmd)

	var pushBranch string
	pushCmd := &cobra.Command{
		Use:   "push",
		Short: "Push a branch to origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := s.newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			return a.Push(cmd.Context(), pushBranch)
		},
	}
	pushCmd.Flags().StringVarP(&pushBranch, "branch", "b", "", "Branch to push (default: current)")

	root.AddCommand(
		suggestCmd,
		pushCmd,
		&cobra.Command{
			Use:   "status",
			Short: "Show the branch and changed files",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := s.newApp(cmd.Context(), false)
				if err != nil {
					return err
				}
				return a.Status(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "changes",
			Short: "Print the diff that would be sent to the model",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := s.newApp(cmd.Context(), false)
				if err != nil {
					return err
				}
				return a.Changes(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "branch <name>",
			Short: "Create and switch to a new branch",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := s.newApp(cmd.Context(), false)
				if err != nil {
					return err
				}
				return a.Branch(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "model",
			Short: "Change or remove the default provider and model",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := s.newApp(cmd.Context(), true)
				if err != nil {
					return err
				}
				return a.ChangeModel(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "prompt",
			Short: "Show or edit the prompt template",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := s.newApp(cmd.Context(), true)
				if err != nil {
					return err
				}
				return a.ChangePrompt(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "install-hook",
			Short: "Install a prepare-commit-msg hook that runs commita",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := s.newApp(cmd.Context(), false)
				if err != nil {
					return err
				}
				return a.InstallHook(cmd.Context())
			},
		},
	)
	return root
}

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	s := &session{flags: &globalFlags{}, log: zap.NewNop(), ui: app.NewTerminal(os.Stdout)}

	err := newRootCmd(s).ExecuteContext(ctx)
	stop()
	_ = s.log.Sync()
	os.Exit(exitCode(s.ui, app.NewTerminal(os.Stderr), err))
}

// exitCode reports err on errOut and maps it to the process status. A user
// abort is not a failure.
func exitCode(out, errOut *app.Terminal, err error) int {
	switch {
	case err == nil:
		return 0
	case ai.IsAborted(err):
		out.Info("Operation cancelled.")
		return 0
	}

	errOut.Error("Error: " + err.Error())
	if hints := errors.FlattenHints(err); hints != "" {
		for _, h := range strings.Split(hints, "\n") {
			if h = strings.TrimSpace(h); h != "" {
				errOut.Print("hint: " + h)
			}
		}
	}
	return 1
}
