package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/remex/pkg/api"
	"github.com/ormasoftchile/remex/pkg/config"
	"github.com/ormasoftchile/remex/pkg/feedback"
	"github.com/ormasoftchile/remex/pkg/policy"
	"github.com/ormasoftchile/remex/pkg/tui"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets
// any variables that aren't already set in the environment.
// Lines are KEY=VALUE (or KEY="VALUE"). Comments (#) and blanks are skipped.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return // no .env file — that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "remex",
	Short: "Remediation session operator console",
	Long:  "remex — an operator console for monitoring and steering remediation runbook sessions executed by a remote executor.",
}

var (
	flagConfig      string
	flagExecutorURL string
	flagNoStream    bool
)

// loadConsoleConfig resolves the effective configuration: file (if given),
// then environment, then flags. Flags win.
func loadConsoleConfig() (*config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.LoadFile(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if env := os.Getenv("REMEX_EXECUTOR_URL"); env != "" {
		cfg.Executor.BaseURL = env
	}
	if flagExecutorURL != "" {
		cfg.Executor.BaseURL = flagExecutorURL
	}
	if flagNoStream {
		cfg.Stream.Disabled = true
	}

	if errs := config.ValidateDomain(cfg); len(errs) > 0 {
		for _, e := range errs {
			if e.Severity == "warning" {
				fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", e.Phase, e.Message)
				continue
			}
			return nil, fmt.Errorf("configuration: %s", e.Message)
		}
	}
	return cfg, nil
}

func newClient(cfg *config.Config) *api.Client {
	c := api.New(cfg.Executor.BaseURL)
	if cfg.Executor.TimeoutSeconds > 0 {
		c.HTTPClient.Timeout = time.Duration(cfg.Executor.TimeoutSeconds) * time.Second
	}
	return c
}

// runConsole compiles the display policy and launches the TUI.
func runConsole(sessionID string) error {
	cfg, err := loadConsoleConfig()
	if err != nil {
		return err
	}
	pol, err := policy.Compile(cfg.Display.Rules)
	if err != nil {
		return fmt.Errorf("display rules: %w", err)
	}
	return tui.Run(context.Background(), tui.Config{
		Client:    newClient(cfg),
		Console:   cfg,
		Policy:    pol,
		SessionID: sessionID,
	})
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Open the session dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole("")
	},
}

// --- watch ---

var watchCmd = &cobra.Command{
	Use:   "watch [session-id]",
	Short: "Watch a session's live step-by-step progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole(args[0])
	},
}

// --- launch ---

var (
	launchIssue string
	launchMeta  []string
)

var launchCmd = &cobra.Command{
	Use:   "launch [runbook-id]",
	Short: "Launch a runbook session and watch it",
	Args:  cobra.ExactArgs(1),
	RunE:  runLaunch,
}

func runLaunch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConsoleConfig()
	if err != nil {
		return err
	}

	meta := make(map[string]string)
	for _, kv := range launchMeta {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid --meta %q: expected key=value", kv)
		}
		meta[parts[0]] = parts[1]
	}

	client := newClient(cfg)
	sess, err := client.CreateSession(context.Background(), api.CreateSessionRequest{
		RunbookID:        args[0],
		IssueDescription: launchIssue,
		Metadata:         meta,
	})
	if err != nil {
		return fmt.Errorf("launch runbook %s: %w", args[0], err)
	}
	fmt.Printf("✓ session %s started (%s)\n", sess.ID, sess.RunbookTitle)
	return runConsole(sess.ID)
}

// --- approvals ---

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Open the pending approvals queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConsoleConfig()
		if err != nil {
			return err
		}
		pol, err := policy.Compile(cfg.Display.Rules)
		if err != nil {
			return fmt.Errorf("display rules: %w", err)
		}
		return tui.RunQueue(context.Background(), tui.Config{
			Client:  newClient(cfg),
			Console: cfg,
			Policy:  pol,
		})
	},
}

// --- approve ---

var (
	approveDeny  bool
	approveNotes string
)

var approveCmd = &cobra.Command{
	Use:   "approve [session-id] [step-number]",
	Short: "Approve (or deny) a gated step without opening the console",
	Args:  cobra.ExactArgs(2),
	RunE:  runApprove,
}

func runApprove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConsoleConfig()
	if err != nil {
		return err
	}
	var stepNumber int
	if _, err := fmt.Sscanf(args[1], "%d", &stepNumber); err != nil {
		return fmt.Errorf("invalid step number %q", args[1])
	}

	client := newClient(cfg)
	if err := client.ApproveStep(context.Background(), args[0], stepNumber, !approveDeny, approveNotes); err != nil {
		return err
	}
	verdict := "approved"
	if approveDeny {
		verdict = "changes requested"
	}
	fmt.Printf("✓ step %d of session %s: %s\n", stepNumber, args[0], verdict)
	return nil
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback [session-id]",
	Short: "Submit completion feedback for a finished session",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeedback,
}

func runFeedback(cmd *cobra.Command, args []string) error {
	cfg, err := loadConsoleConfig()
	if err != nil {
		return err
	}
	client := newClient(cfg)
	ctx := context.Background()

	sess, err := client.GetSession(ctx, args[0])
	if err != nil {
		return err
	}

	collector, err := feedback.New(os.Stdout)
	if err != nil {
		return err
	}
	defer collector.Close()

	fb, err := collector.Collect(sess)
	if err != nil {
		if err == feedback.ErrAborted {
			fmt.Fprintln(os.Stderr, "feedback cancelled")
			return nil
		}
		return err
	}
	if err := client.CompleteSession(ctx, sess.ID, fb); err != nil {
		return fmt.Errorf("submit feedback: %w", err)
	}
	fmt.Printf("✓ feedback recorded for session %s\n", sess.ID)
	return nil
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [config.yaml]",
	Short: "Validate a console configuration file",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, errs := config.ValidateFile(args[0])
	if len(errs) > 0 {
		var fatal []*config.ValidationError
		for _, e := range errs {
			if e.Severity == "warning" {
				fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", e.Phase, e.Message)
				if e.Path != "" {
					fmt.Fprintf(os.Stderr, "    at: %s\n", e.Path)
				}
				continue
			}
			fatal = append(fatal, e)
		}
		if len(fatal) > 0 {
			fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", len(fatal))
			for i, e := range fatal {
				fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
				if e.Path != "" {
					fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
				}
			}
			return fmt.Errorf("validation failed with %d error(s)", len(fatal))
		}
	}
	fmt.Printf("✓ %s is valid (executor %s)\n", args[0], cfg.Executor.BaseURL)
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Configuration schema utilities",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the configuration JSON Schema to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.GenerateJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("remex %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to console configuration YAML")
	rootCmd.PersistentFlags().StringVar(&flagExecutorURL, "executor-url", "", "Executor base URL (overrides REMEX_EXECUTOR_URL)")
	rootCmd.PersistentFlags().BoolVar(&flagNoStream, "no-stream", false, "Disable the WebSocket event stream; poll only")

	launchCmd.Flags().StringVar(&launchIssue, "issue", "", "Issue description passed to the executor")
	launchCmd.Flags().StringArrayVar(&launchMeta, "meta", nil, "Session metadata (key=value), repeatable")

	approveCmd.Flags().BoolVar(&approveDeny, "deny", false, "Request changes instead of approving")
	approveCmd.Flags().StringVar(&approveNotes, "notes", "", "Reviewer notes recorded with the decision")

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(approvalsCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}
