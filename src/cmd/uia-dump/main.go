// Command uia-dump prints the UI Automation tree of the Viber window and
// the controls the agent would type into and click.
package main

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"viber-agent/src/config"
	"viber-agent/src/inject"
	"viber-agent/src/timing"
	"viber-agent/src/window"
)

type dumpOptions struct {
	outPath string
	timeout time.Duration
}

func main() {
	opts := &dumpOptions{}
	if err := newRootCmd(opts).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *dumpOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "uia-dump",
		Short:         "Dump the Viber window's UI Automation tree",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.outPath, "out", "viber_uia_tree.txt", "File to write the tree to ('' for stdout only)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 3*time.Second, "How long to wait for the window")
	return cmd
}

func run(opts dumpOptions, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	title, err := regexp.Compile(cfg.TitlePattern)
	if err != nil {
		return fmt.Errorf("invalid WINDOW_TITLE_PATTERN: %w", err)
	}

	tree := inject.NewTree()
	if tree == nil {
		return inject.ErrUnsupported
	}

	sys := window.NewSystem()
	h, rect, err := window.NewLocator(sys, timing.Real(), window.Options{
		TitlePattern: title,
		ExePath:      cfg.ViberExe,
		PollInterval: cfg.Timings.PollInterval,
		FocusSettle:  cfg.Timings.FocusSettle,
	}).Locate(opts.timeout)
	if err != nil {
		return fmt.Errorf("no Viber window found, open Viber (and a chat) then run this again: %w", err)
	}
	fmt.Fprintf(stdout, "Viber hwnd: %#x %v\n", uintptr(h), rect)

	sel := inject.Selectors{
		InputAutomationID: cfg.InputAutomationID,
		SendAutomationID:  cfg.SendAutomationID,
		SendButtonName:    cfg.SendButtonName,
	}

	w := stdout
	if opts.outPath != "" {
		f, err := os.Create(opts.outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = io.MultiWriter(stdout, f)
	}
	if err := dump(tree, h, sel, w); err != nil {
		return err
	}
	if opts.outPath != "" {
		fmt.Fprintf(stdout, "Full tree written to: %s\n", opts.outPath)
	}
	return nil
}

// dump writes the tree of h and the selector matches.
func dump(tree inject.Tree, h window.Handle, sel inject.Selectors, w io.Writer) error {
	snap, err := tree.Snapshot(h)
	if err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}
	defer snap.Release()

	els := snap.Elements()
	if err := inject.Dump(w, els); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d elements\n", len(els))
	fmt.Fprintf(w, "input: %s\n", describe(els, sel.FindInput(els)))
	fmt.Fprintf(w, "send:  %s\n", describe(els, sel.FindSend(els)))
	return nil
}

func describe(els []inject.Element, i int) string {
	if i < 0 {
		return "not found"
	}
	e := els[i]
	return fmt.Sprintf("#%d %s name=%q automation_id=%q", i, e.ControlType, e.Name, e.AutomationID)
}
