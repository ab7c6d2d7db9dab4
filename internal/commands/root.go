// Package commands provides the sentichat command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/diogo/sentichat/internal/config"
	apierrors "github.com/diogo/sentichat/internal/errors"
)

var (
	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// errDispatchFailed marks a one-shot query whose webhook call failed. The
// fallback reply has already been printed, so only the exit status remains.
var errDispatchFailed = errors.New("dispatch failed")

// globalOptions holds flag values shared by the root command and chat
type globalOptions struct {
	endpoint   string
	timeout    int
	verbose    bool
	output     string
	file       string
	transcript string
	raw        bool
}

// NewRootCmd creates the sentichat command tree
func NewRootCmd(deps *Dependencies) *cobra.Command {
	deps = deps.withDefaults()
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "sentichat [message]",
		Short: "NVDA Sentiment Tracker chat client",
		Long: `sentichat sends your questions about NVDA market sentiment to a
webhook and shows the replies, either as a one-shot query or in an
interactive chat.

Examples:
  sentichat chat                              Start interactive chat
  sentichat "How is NVDA trending today?"     Send a single message
  sentichat -f question.md                    Read the message from a file
  cat question.md | sentichat                 Read the message from stdin
  sentichat "Summarize sentiment" -o out.md   Save the reply to a file
  sentichat config set endpoint https://...   Change the webhook URL`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(deps.Stdout, "sentichat %s (built %s)\n", Version, BuildTime)
				return nil
			}

			message, ok, err := readMessage(opts.file, deps.Stdin, args)
			if err != nil {
				return err
			}
			if !ok {
				return cmd.Help()
			}

			cfg, err := loadSettings(cmd, opts)
			if err != nil {
				return err
			}
			return runQuery(cmd.Context(), deps, cfg, opts, message)
		},
	}

	cmd.SetOut(deps.Stdout)
	cmd.SetErr(deps.Stderr)

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.endpoint, "endpoint", "", "Webhook URL (overrides config and "+config.EnvEndpoint+")")
	pf.IntVar(&opts.timeout, "timeout", 0, "Request timeout in seconds, 0 waits indefinitely")
	pf.BoolVar(&opts.verbose, "verbose", false, "Print diagnostic output")

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Save the reply to file")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read the message from file")
	cmd.Flags().StringVar(&opts.transcript, "transcript", "", "Export the exchange to file (.md or .json)")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print only the reply text")
	cmd.Flags().BoolP("version", "v", false, "Show version and exit")

	cmd.AddCommand(newChatCmd(deps, opts))
	cmd.AddCommand(NewConfigCmd(deps))

	return cmd
}

var rootCmd = NewRootCmd(nil)

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, errDispatchFailed) {
			fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Error"))
		}
		os.Exit(1)
	}
}

// readMessage picks the message from --file, piped stdin or the argument,
// in that order. ok is false when none was given.
func readMessage(file string, stdin io.Reader, args []string) (string, bool, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", false, fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), true, nil
	}

	if hasPipedInput(stdin) {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", false, fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), true, nil
	}

	if len(args) > 0 {
		return args[0], true, nil
	}

	return "", false, nil
}

// hasPipedInput reports whether r carries data rather than a terminal
func hasPipedInput(r io.Reader) bool {
	if r == nil {
		return false
	}
	f, ok := r.(*os.File)
	if !ok {
		return true
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// loadSettings resolves the effective configuration: file, then .env and
// environment, then flags.
func loadSettings(cmd *cobra.Command, opts *globalOptions) (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint = opts.endpoint
	}
	if flags.Changed("timeout") {
		if opts.timeout < 0 {
			return cfg, fmt.Errorf("%w: --timeout must not be negative", apierrors.ErrInvalidSetting)
		}
		cfg.TimeoutSeconds = opts.timeout
	}
	if flags.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}

	if cfg.Endpoint == "" {
		return cfg, apierrors.ErrNoEndpoint
	}
	return cfg, nil
}
