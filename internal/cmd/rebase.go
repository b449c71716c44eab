package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/remerge/internal/agent"
	"github.com/Iron-Ham/remerge/internal/config"
	"github.com/Iron-Ham/remerge/internal/conflict"
	"github.com/Iron-Ham/remerge/internal/git"
	"github.com/Iron-Ham/remerge/internal/logging"
	"github.com/Iron-Ham/remerge/internal/orchestrator"
	"github.com/Iron-Ham/remerge/internal/orchestrator/callback"
	"github.com/Iron-Ham/remerge/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	rebaseMaxAttempts int
	rebaseContinue    bool
	rebaseNoTUI       bool
)

var rebaseCmd = &cobra.Command{
	Use:   "rebase <source-branch> <target-branch>",
	Short: "Rebase a branch and resolve conflicts with an AI agent",
	Long: `Rebase rebases the source branch onto the target branch. When the rebase
stops on conflicts, each conflicted file is handed to the configured agent
for resolution, and every resolution is independently verified before it is
staged. If the conflicts cannot be resolved within the attempt budget, the
repository is rolled back to the state it was in before the rebase began.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRebase(cmd.Context(), args[0], args[1])
	},
}

func init() {
	rebaseCmd.Flags().IntVar(&rebaseMaxAttempts, "max-attempts", 0, "maximum resolution attempts per file and rebase rounds (1-10, 0 uses config)")
	rebaseCmd.Flags().BoolVar(&rebaseContinue, "continue", false, "resume an interrupted rebase instead of starting a new one")
	rebaseCmd.Flags().BoolVar(&rebaseNoTUI, "no-tui", false, "disable the interactive progress display")
	rootCmd.AddCommand(rebaseCmd)
}

func runRebase(parent context.Context, source, target string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config: %s\n", e.Error())
		}
		return fmt.Errorf("invalid configuration")
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logger.Close()
	}

	repoDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to determine working directory: %w", err)
	}

	executor := git.NewCLICommandExecutor()
	client := git.NewClientWithExecutor(repoDir, executor)

	ag, err := agent.NewFromConfig(cfg, executor, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := orchestrator.Options{
		MaxAttempts:      rebaseMaxAttempts,
		LockFilePatterns: cfg.Rebase.LockFilePatterns,
	}
	if rebaseMaxAttempts == 0 {
		opts.MaxAttempts = cfg.Rebase.MaxAttempts
	}

	// Best effort: the orchestrator falls back to byte comparison when
	// filesystem watching is unavailable.
	if watcher, werr := conflict.NewWatcher(repoDir); werr == nil {
		watcher.Start()
		defer watcher.Stop()
		opts.Watcher = watcher
	} else {
		logger.Warn("filesystem watcher unavailable", "error", werr)
	}

	interactive := !rebaseNoTUI && term.IsTerminal(int(os.Stdout.Fd()))

	var app *tui.App
	if interactive {
		app = tui.NewApp(source, target)
		opts.Callbacks = app.Callbacks()
	} else {
		opts.Callbacks = plainCallbacks()
	}

	orch := orchestrator.New(client, ag, ag, logger)

	var handle *orchestrator.Handle
	if rebaseContinue {
		handle, err = orch.Resume(ctx, source, target, opts)
	} else {
		handle, err = orch.Start(ctx, source, target, opts)
	}
	if err != nil {
		return err
	}

	if interactive {
		canceled, runErr := app.Run()
		if runErr != nil {
			cancel()
			<-handle.Done()
			return fmt.Errorf("display error: %w", runErr)
		}
		if canceled {
			fmt.Fprintln(os.Stderr, "canceling; rolling back...")
			cancel()
		}
	}

	// Wait on a fresh context so rollback always finishes, even after
	// cancellation.
	success, runErr := handle.Wait(context.Background())
	if runErr != nil {
		return runErr
	}
	if !success {
		return fmt.Errorf("rebase did not complete")
	}

	fmt.Printf("Rebased %s onto %s\n", source, target)
	return nil
}

// plainCallbacks prints workflow events line by line for non-interactive
// sessions (pipes, CI).
func plainCallbacks() *callback.Callbacks {
	return &callback.Callbacks{
		OnStageChange: func(from, to callback.Stage) {
			fmt.Printf("stage: %s\n", to)
		},
		OnFileResolved: func(path string, attempts int) {
			fmt.Printf("resolved: %s (attempts: %d)\n", path, attempts)
		},
		OnFileFailed: func(path, reason string) {
			fmt.Fprintf(os.Stderr, "failed: %s: %s\n", path, reason)
		},
		OnProgress: func(settled, total int, stage callback.Stage) {
			fmt.Printf("progress: %d/%d files\n", settled, total)
		},
	}
}
