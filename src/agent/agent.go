// Package agent is the service facade behind the HTTP surface: it runs
// lookups and sends on the worker pool and adds name recognition on top
// of the captured images.
package agent

import (
	"context"
	"log"
	"os"
	"runtime"
	"time"

	"viber-agent/src/capture"
	"viber-agent/src/logutil"
	"viber-agent/src/metrics"
	"viber-agent/src/ocr"
	"viber-agent/src/worker"
)

const (
	NoTextDetected = "(no text detected)"
	OCRNotSetUp    = "(set OPENAI_API_KEY for OCR)"
)

// Pipeline is the desktop side of an operation.
type Pipeline interface {
	Lookup(number string, wantWindow bool) (capture.Result, error)
	Send(number, text string) error
}

// Recognizer resolves a contact name from an image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (ocr.Recognition, error)
}

type LookupRequest struct {
	Number    string
	OnlyPanel bool
	// Recognize runs name recognition on the panel (or window) image.
	Recognize bool
}

type LookupResult struct {
	Number      string
	WindowImage []byte
	PanelImage  []byte
	Backend     string
	PanelText   string
	ContactName string
}

type Health struct {
	Status      string      `json:"status"`
	ViberPath   string      `json:"viber_path"`
	ViberExists bool        `json:"viber_exists"`
	Automation  bool        `json:"automation"`
	OCR         bool        `json:"ocr"`
	OCRBackend  interface{} `json:"ocr_backend"` // "gpt" or false, as older clients expect
	Model       string      `json:"model,omitempty"`
	Capture     []string    `json:"capture_backends,omitempty"`
}

type Options struct {
	Pipeline   Pipeline
	Recognizer Recognizer
	Pool       *worker.Pool
	Metrics    *metrics.Metrics
	ViberExe   string
	Model      string
	// OCREnabled reports whether a recognition service is configured.
	OCREnabled      bool
	CaptureBackends []string
}

type Agent struct {
	opts Options
}

func New(opts Options) *Agent {
	if opts.Pool == nil {
		opts.Pool = worker.New(1, 1)
	}
	return &Agent{opts: opts}
}

// Lookup captures the conversation for req.Number and, when asked,
// resolves the contact name. Recognition never fails the lookup.
func (a *Agent) Lookup(ctx context.Context, req LookupRequest) (LookupResult, error) {
	var res capture.Result
	err := a.opts.Pool.Do(ctx, func(context.Context) error {
		var err error
		res, err = a.opts.Pipeline.Lookup(req.Number, !req.OnlyPanel)
		return err
	})
	if err != nil {
		return LookupResult{}, err
	}

	out := LookupResult{
		Number:      req.Number,
		WindowImage: res.WindowImage,
		PanelImage:  res.RegionImage,
		Backend:     res.Backend,
	}
	if req.Recognize {
		out.PanelText, out.ContactName = a.recognize(ctx, res)
	}
	return out, nil
}

func (a *Agent) recognize(ctx context.Context, res capture.Result) (string, string) {
	if !a.opts.OCREnabled || a.opts.Recognizer == nil {
		return OCRNotSetUp, ""
	}
	image, source := res.RegionImage, "panel"
	if image == nil {
		image, source = res.WindowImage, "window"
	}
	if image == nil {
		return NoTextDetected, ""
	}

	start := time.Now()
	rec, err := a.opts.Recognizer.Recognize(ctx, image)
	logutil.Step("recognition total ("+source+")", time.Since(start), "")
	if err != nil {
		log.Printf("agent: recognition failed, continuing without a name: %v", err)
		a.opts.Metrics.Recognition("failed")
		rec.Name = ""
	} else if rec.Name == "" {
		a.opts.Metrics.Recognition("rejected")
	} else {
		a.opts.Metrics.Recognition("accepted")
	}

	text := rec.Raw
	if text == "" {
		text = NoTextDetected
	}
	return text, rec.Name
}

// Send types and sends message into the conversation for number.
func (a *Agent) Send(ctx context.Context, number, message string) error {
	return a.opts.Pool.Do(ctx, func(context.Context) error {
		return a.opts.Pipeline.Send(number, message)
	})
}

func (a *Agent) Health(context.Context) Health {
	h := Health{
		Status:     "ok",
		ViberPath:  a.opts.ViberExe,
		Automation: runtime.GOOS == "windows",
		OCR:        a.opts.OCREnabled,
		OCRBackend: false,
		Capture:    a.opts.CaptureBackends,
	}
	if fi, err := os.Stat(a.opts.ViberExe); err == nil && !fi.IsDir() {
		h.ViberExists = true
	}
	if a.opts.OCREnabled {
		h.OCRBackend = "gpt"
		h.Model = a.opts.Model
	}
	return h
}
