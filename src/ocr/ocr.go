// Package ocr turns a captured contact panel into a contact name using the
// recognition service and a deterministic acceptance heuristic.
package ocr

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	agenterrors "viber-agent/src/errors"
	"viber-agent/src/llm"
	"viber-agent/src/logutil"
	"viber-agent/src/timing"
)

const visionPrompt = "Look at this image from a messaging app contact panel. Extract all visible text. " +
	"On the first line write only the contact name (the person's name). " +
	"On the next line write a dash, then on the following lines list any other text you see. " +
	"If there is no clear name, write '" + NoNameSentinel + "' on the first line."

const correctionPrompt = "This is a contact name extracted from a messaging app image. It may be mixed Latin/Cyrillic or have OCR errors.\n\n" +
	"Tasks:\n" +
	"1. Convert to correct Cyrillic if it should be Cyrillic (e.g. Bulgarian, Russian names).\n" +
	"2. Fix any spelling mistakes and ensure it looks like a real person's name (first name, optionally last name).\n" +
	"3. Reply with ONLY the corrected name, nothing else. No quotes, no explanation.\n" +
	"4. If the input is clearly not a person's name (garbage, placeholder, etc.), reply with exactly: " + NoNameSentinel + "\n\n" +
	"Input: %s"

// Recognizer is the recognition service.
type Recognizer interface {
	QueryVision(ctx context.Context, png []byte, prompt string, maxTokens int) (llm.Response, error)
	QueryText(ctx context.Context, prompt string, maxTokens int) (llm.Response, error)
}

// Recognition is the outcome of one resolve.
type Recognition struct {
	Raw       string
	Candidate string
	Name      string
	Corrected bool
}

type Options struct {
	Rules   Rules
	FixName bool
	// Model is used only to price the usage in the logs.
	Model string
	Clock timing.Clock
}

type Resolver struct {
	rec   Recognizer
	opts  Options
	clock timing.Clock
}

func NewResolver(rec Recognizer, opts Options) *Resolver {
	if opts.Clock == nil {
		opts.Clock = timing.Real()
	}
	if opts.Rules.MaxRunes == 0 {
		opts.Rules = DefaultRules()
	}
	return &Resolver{rec: rec, opts: opts, clock: opts.Clock}
}

// Resolve returns the raw recognition text and the accepted contact name.
// Recognition failures are logged and yield an empty name.
func (r *Resolver) Resolve(ctx context.Context, image []byte) (string, string) {
	res, err := r.Recognize(ctx, image)
	if err != nil {
		log.Printf("ocr: %v", err)
		return res.Raw, ""
	}
	return res.Raw, res.Name
}

// Recognize is Resolve with the failure kept as a RECOGNITION_FAILED
// error. Raw is filled whenever the vision call succeeded.
func (r *Resolver) Recognize(ctx context.Context, image []byte) (Recognition, error) {
	if r.rec == nil {
		return Recognition{}, agenterrors.NewRecognitionError("setup", 0, llm.ErrNotConfigured)
	}
	if len(image) == 0 {
		return Recognition{}, agenterrors.NewRecognitionError("input", 0, fmt.Errorf("empty image"))
	}

	start := r.clock.Now()
	resp, err := r.rec.QueryVision(ctx, image, visionPrompt, 300)
	elapsed := timing.Since(r.clock, start)
	if err != nil {
		return Recognition{}, agenterrors.NewRecognitionError("vision", elapsed, err)
	}
	r.logUsage("recognition (vision)", elapsed, resp.Usage)

	out := Recognition{Raw: strings.TrimSpace(resp.Text)}
	log.Printf("ocr: raw=%q", logutil.Sanitize(out.Raw, 300))

	out.Candidate = r.opts.Rules.ParseCandidate(out.Raw)
	if out.Candidate == "" {
		return out, nil
	}

	name := out.Candidate
	if r.opts.FixName && !r.opts.Rules.LooksClean(name) {
		fixed, err := r.correct(ctx, name)
		if err != nil {
			return out, err
		}
		name, out.Corrected = fixed, true
	}

	if r.opts.Rules.IsPlausiblePersonName(name) {
		out.Name = name
	} else {
		log.Printf("ocr: rejected candidate %q", logutil.Sanitize(name, 80))
	}
	return out, nil
}

func (r *Resolver) correct(ctx context.Context, candidate string) (string, error) {
	start := r.clock.Now()
	resp, err := r.rec.QueryText(ctx, fmt.Sprintf(correctionPrompt, candidate), 80)
	elapsed := timing.Since(r.clock, start)
	if err != nil {
		return "", agenterrors.NewRecognitionError("correction", elapsed, err)
	}
	r.logUsage("recognition (fix name)", elapsed, resp.Usage)

	fixed := strings.TrimSpace(resp.Text)
	if normalize(fixed) == normalize(NoNameSentinel) {
		fixed = ""
	}
	log.Printf("ocr: fix name %q -> %q", logutil.Sanitize(candidate, 80), logutil.Sanitize(fixed, 80))
	return fixed, nil
}

func (r *Resolver) logUsage(step string, elapsed time.Duration, usage *llm.Usage) {
	if usage == nil {
		logutil.Step(step, elapsed, "")
		return
	}
	cost := llm.EstimateCostUSD(r.opts.Model, usage)
	logutil.Step(step, elapsed, fmt.Sprintf("tokens in=%d out=%d ~$%.6f", usage.PromptTokens, usage.CompletionTokens, cost))
}
