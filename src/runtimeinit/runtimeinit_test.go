package runtimeinit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"viber-agent/src/capture"
	"viber-agent/src/config"
	"viber-agent/src/ocr"
	"viber-agent/src/window"
)

func testConfig() *config.Config {
	return &config.Config{
		ViberExe:     "/nonexistent/Viber.exe",
		TitlePattern: ".*Viber.*",
		URIScheme:    "viber",
		Timings: config.Timings{
			PollInterval: 250 * time.Millisecond,
			FocusSettle:  300 * time.Millisecond,
		},
		Panel:         config.Panel{Anchor: config.AnchorRight, Width: 290, Top: 40, TopPadding: 30, Height: 250},
		CaptureMode:   config.BackendAuto,
		MinImageBytes: 20000,
		Model:         config.DefaultModel,
		Workers:       1,
		QueueSize:     1,
	}
}

func TestRegionSpecFromPanel(t *testing.T) {
	spec := RegionSpec(testConfig().Panel)
	if spec.Anchor != capture.AnchorRight || spec.TopOffset != 70 {
		t.Fatalf("unexpected spec %+v", spec)
	}
	got := spec.Resolve(window.Rect{Width: 800, Height: 600})
	if got != (window.Rect{Left: 510, Top: 70, Width: 290, Height: 250}) {
		t.Errorf("unexpected region %v", got)
	}
}

func TestRulesMergesDenylist(t *testing.T) {
	cfg := testConfig()
	cfg.NameDenylist = []string{"Support Team"}
	cfg.MinAlphaRatio = 0.7

	rules := Rules(cfg)
	if rules.MinAlphaRatio != 0.7 {
		t.Errorf("ratio %v", rules.MinAlphaRatio)
	}
	if len(rules.Denylist) != len(ocr.DefaultDenylist)+1 {
		t.Errorf("expected defaults plus one entry, got %d", len(rules.Denylist))
	}
	if len(ocr.DefaultRules().Denylist) != len(ocr.DefaultDenylist) {
		t.Error("defaults must not be modified")
	}
	if !ocr.DefaultRules().IsPlausiblePersonName("support team") || rules.IsPlausiblePersonName("support team") {
		t.Error("configured denylist entry should be rejected")
	}
}

func TestBuildRejectsBadTitlePattern(t *testing.T) {
	cfg := testConfig()
	cfg.TitlePattern = "("
	if _, err := Build(cfg); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestBuildServesHealth(t *testing.T) {
	rt, err := Build(testConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Pool.Close()

	h := rt.Agent.Health(context.Background())
	if h.ViberExists || h.OCR || h.OCRBackend != false {
		t.Errorf("unexpected health %+v", h)
	}
	if len(h.Capture) == 0 || h.Capture[len(h.Capture)-1] != capture.BackendScreenGrab {
		t.Errorf("screen grab must be the last backend, got %v", h.Capture)
	}

	rec := httptest.NewRecorder()
	rt.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status %d", rec.Code)
	}
}
