package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"viber-agent/src/config"
	"viber-agent/src/logutil"
	"viber-agent/src/runtimeinit"
)

const shutdownTimeout = 30 * time.Second

type mainOptions struct {
	host       string
	port       int
	apiKeyPath string
	envPath    string
	noPing     bool
}

func main() {
	enableDPIAwareness()

	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"viber-agent"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "viber-agent",
		Short:         "HTTP agent that looks up numbers and sends messages through Viber desktop",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *opts, cmd.Flags().Changed("host"), cmd.Flags().Changed("port"))
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "0.0.0.0", "Listen address (overrides AGENT_HOST)")
	cmd.Flags().IntVar(&opts.port, "port", 5050, "Listen port (overrides AGENT_PORT)")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to the OpenAI API key file (highest precedence)")
	cmd.Flags().StringVar(&opts.envPath, "env", "", "Path to a .env file")
	cmd.Flags().BoolVar(&opts.noPing, "no-ping", false, "Skip the startup check of the recognition service")

	return cmd
}

func serve(ctx context.Context, opts mainOptions, hostSet, portSet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			APIKeyPathOverride: opts.apiKeyPath,
			EnvPathOverride:    opts.envPath,
		},
		SetupLogging: logutil.Setup,
		PingLLM:      !opts.noPing,
	})
	if err != nil {
		return err
	}
	defer rt.Pool.Close()

	logMonitorConfiguration()

	addr := listenAddr(rt.Config, opts, hostSet, portSet)
	srv := &http.Server{
		Addr:              addr,
		Handler:           rt.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Viber agent listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Printf("Shutting down, waiting up to %v for in-flight requests", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// listenAddr prefers explicit flags over the configuration.
func listenAddr(cfg *config.Config, opts mainOptions, hostSet, portSet bool) string {
	host, port := cfg.Host, cfg.Port
	if hostSet {
		host = opts.host
	}
	if portSet {
		port = opts.port
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// normalizeLegacyArgs maps single-dash long flags to cobra's --flag form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"host", "port", "api-key-path", "env", "no-ping"} {
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
