// Package runtimeinit wires configuration into a ready-to-serve agent.
package runtimeinit

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"viber-agent/src/agent"
	"viber-agent/src/capture"
	"viber-agent/src/config"
	"viber-agent/src/inject"
	"viber-agent/src/launch"
	"viber-agent/src/llm"
	"viber-agent/src/logutil"
	"viber-agent/src/metrics"
	"viber-agent/src/ocr"
	"viber-agent/src/pipeline"
	"viber-agent/src/server"
	"viber-agent/src/timing"
	"viber-agent/src/window"
	"viber-agent/src/worker"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(bool)
	// PingLLM checks the recognition service at startup. A failed ping is
	// logged, not fatal: lookups still work without names.
	PingLLM bool
}

// Runtime is everything main needs to serve and shut down.
type Runtime struct {
	Config   *config.Config
	Agent    *agent.Agent
	Handler  http.Handler
	Pool     *worker.Pool
	Registry *prometheus.Registry
}

func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	rt, err := Build(cfg)
	if err != nil {
		return nil, err
	}

	if !cfg.HasOCR() {
		log.Printf("OCR disabled: no API key (checked %s and OPENAI_API_KEY)", cfg.APIKeyPath)
	} else if opts.PingLLM {
		client := newLLM(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			log.Printf("LLM ping failed, names will be empty until it recovers: %v", err)
		} else {
			log.Printf("LLM ping succeeded (model %s, key %s)", cfg.Model, logutil.RedactKey(cfg.APIKey))
		}
	}
	return rt, nil
}

// Build assembles the runtime from an already loaded configuration.
func Build(cfg *config.Config) (*Runtime, error) {
	title, err := regexp.Compile(cfg.TitlePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid WINDOW_TITLE_PATTERN %q: %w", cfg.TitlePattern, err)
	}

	clock := timing.Real()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sys := window.NewSystem()
	locator := window.NewLocator(sys, clock, window.Options{
		TitlePattern: title,
		ExePath:      cfg.ViberExe,
		PollInterval: cfg.Timings.PollInterval,
		FocusSettle:  cfg.Timings.FocusSettle,
	})

	capturer := capture.New(capture.Options{
		Renderer:   capture.NewRenderer(),
		ScreenOnly: cfg.CaptureMode == config.BackendScreen,
		MinBytes:   cfg.MinImageBytes,
		DebugPath:  cfg.LastCapture,
		Clock:      clock,
	})

	injector := inject.New(inject.NewTree(), inject.NewKeyboard(), sys, inject.Options{
		Selectors: inject.Selectors{
			InputAutomationID: cfg.InputAutomationID,
			SendAutomationID:  cfg.SendAutomationID,
			SendButtonName:    cfg.SendButtonName,
		},
		FocusSettle: cfg.Timings.FocusSettle,
		Clock:       clock,
	})

	pipe := pipeline.New(pipeline.Options{
		Launcher: launch.NewTrigger(launch.NewOpener(), cfg.URIScheme),
		Locator:  locator,
		Capturer: capturer,
		Sender:   injector,
		Windows:  sys,
		Region:   RegionSpec(cfg.Panel),
		Timings:  cfg.Timings,
		Clock:    clock,
		Metrics:  m,
	})

	pool := worker.New(cfg.Workers, cfg.QueueSize)

	var recognizer agent.Recognizer
	if cfg.HasOCR() {
		recognizer = ocr.NewResolver(newLLM(cfg), ocr.Options{
			Rules:   Rules(cfg),
			FixName: cfg.FixName,
			Model:   cfg.Model,
			Clock:   clock,
		})
	}

	backends := capturer.Backends()

	a := agent.New(agent.Options{
		Pipeline:        pipe,
		Recognizer:      recognizer,
		Pool:            pool,
		Metrics:         m,
		ViberExe:        cfg.ViberExe,
		Model:           cfg.Model,
		OCREnabled:      cfg.HasOCR(),
		CaptureBackends: backends,
	})

	handler := server.New(server.Options{
		Service:  a,
		APIKey:   cfg.AgentAPIKey,
		Gatherer: reg,
	})

	log.Printf("Viber: %s", cfg.ViberExe)
	log.Printf("Capture backends: %v (min %d bytes)", backends, cfg.MinImageBytes)
	log.Printf("Workers: %d, queue: %d", cfg.Workers, cfg.QueueSize)

	return &Runtime{Config: cfg, Agent: a, Handler: handler, Pool: pool, Registry: reg}, nil
}

// RegionSpec converts the panel configuration into a capture region. The
// top padding skips the chat header above the contact card.
func RegionSpec(p config.Panel) capture.RegionSpec {
	return capture.RegionSpec{
		Anchor:    capture.Anchor(p.Anchor),
		TopOffset: p.Top + p.TopPadding,
		Width:     p.Width,
		Height:    p.Height,
	}
}

// Rules returns the name acceptance rules with the configured overrides.
func Rules(cfg *config.Config) ocr.Rules {
	rules := ocr.DefaultRules()
	if len(cfg.NameDenylist) > 0 {
		rules.Denylist = append(append([]string{}, rules.Denylist...), cfg.NameDenylist...)
	}
	if cfg.MinAlphaRatio > 0 {
		rules.MinAlphaRatio = cfg.MinAlphaRatio
	}
	return rules
}

func newLLM(cfg *config.Config) *llm.Client {
	return llm.New(llm.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		Providers: cfg.Providers,
		Timeout:   cfg.OCRTimeout,
	})
}
