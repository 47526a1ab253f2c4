package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultAgentURL = "http://127.0.0.1:5050"

type cliOptions struct {
	agentURL string
	apiKey   string
	timeout  time.Duration
	verbose  bool

	// lookup
	onlyPanel    bool
	includePhoto bool
	jsonOutput   bool

	// resolve
	filePath   string
	apiKeyPath string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), os.Stdout)
}

func runWithArgs(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		args = []string{"viber-client"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts, stdout)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "viber-client",
		Short:         "Talk to a viber-agent from another machine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				log.SetOutput(os.Stderr)
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}
	cmd.SetOut(stdout)

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.agentURL, "agent", envOr("VIBER_AGENT_URL", defaultAgentURL), "Agent base URL")
	pf.StringVar(&opts.apiKey, "api-key", os.Getenv("AGENT_API_KEY"), "Agent API key (X-API-Key)")
	pf.DurationVar(&opts.timeout, "timeout", 90*time.Second, "Request timeout")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	cmd.AddCommand(newLookupCmd(opts), newSendCmd(opts), newResolveCmd(opts))
	return cmd
}

func newLookupCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup NUMBER [OUTPUT]",
		Short: "Capture the Viber conversation for NUMBER",
		Long: "Saves the Viber window as OUTPUT (default viber_screenshot.png).\n" +
			"--panel saves only the contact panel; --photo saves OUTPUT_window.png and OUTPUT_panel.png;\n" +
			"--json prints the recognized contact name and text instead of saving images.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := "viber_screenshot"
			if len(args) > 1 {
				output = args[1]
			}
			c := newClient(opts.agentURL, opts.apiKey, opts.timeout)
			if opts.jsonOutput {
				return printLookup(cmd.Context(), c, cmd.OutOrStdout(), args[0], opts.onlyPanel)
			}
			return saveLookup(cmd.Context(), c, cmd.OutOrStdout(), args[0], output, opts.onlyPanel, opts.includePhoto)
		},
	}
	cmd.Flags().BoolVar(&opts.onlyPanel, "panel", false, "Only the contact panel")
	cmd.Flags().BoolVar(&opts.includePhoto, "photo", false, "Both the window and the contact panel")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the JSON lookup result with the contact name")
	cmd.MarkFlagsMutuallyExclusive("panel", "photo")
	return cmd
}

func newSendCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send NUMBER MESSAGE...",
		Short: "Send MESSAGE to NUMBER through the agent",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(opts.agentURL, opts.apiKey, opts.timeout)
			if err := c.sendMessage(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent to %s\n", args[0])
			return nil
		},
	}
}

func newResolveCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the contact name in a saved panel PNG locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), *opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "verbose", "api-key-path", "agent", "panel", "photo"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}

	return normalized
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
