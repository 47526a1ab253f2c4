package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"viber-agent/src/config"
	"viber-agent/src/llm"
	"viber-agent/src/ocr"
	"viber-agent/src/runtimeinit"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type ResolveResult struct {
	Name      string  `json:"contact_name"`
	Raw       string  `json:"panel_text"`
	Corrected bool    `json:"corrected"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
}

func runResolve(ctx context.Context, opts cliOptions, stdin io.Reader, out io.Writer) error {
	imageData, err := readImage(opts.filePath, stdin)
	if err != nil {
		return err
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !cfg.HasOCR() {
		return fmt.Errorf("OPENAI_API_KEY not found. Checked key file %s and OPENAI_API_KEY env var", cfg.APIKeyPath)
	}

	resolver := ocr.NewResolver(llm.New(llm.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		Providers: cfg.Providers,
		Timeout:   cfg.OCRTimeout,
	}), ocr.Options{Rules: runtimeinit.Rules(cfg), FixName: cfg.FixName, Model: cfg.Model})

	return resolveImage(ctx, resolver, imageData, opts.filePath, opts.jsonOutput, out)
}

// readImage reads a PNG from path ('-' for stdin) and checks it.
func readImage(path string, stdin io.Reader) ([]byte, error) {
	var imageData []byte
	var err error
	if path == "-" {
		imageData, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		imageData, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
	}

	if len(imageData) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	if len(imageData) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if len(imageData) < len(pngMagic) || !bytes.Equal(imageData[:len(pngMagic)], pngMagic) {
		return nil, fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return imageData, nil
}

type nameRecognizer interface {
	Resolve(ctx context.Context, image []byte) (string, string)
	Recognize(ctx context.Context, image []byte) (ocr.Recognition, error)
}

// resolveImage prints the accepted name, or the no-name sentinel when
// recognition fails or rejects the text. JSON output reports failures as
// errors.
func resolveImage(ctx context.Context, r nameRecognizer, imageData []byte, source string, jsonOutput bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !jsonOutput {
		_, name := r.Resolve(ctx, imageData)
		if name == "" {
			name = ocr.NoNameSentinel
		}
		fmt.Fprintln(out, name)
		return nil
	}

	start := time.Now()
	rec, err := r.Recognize(ctx, imageData)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("recognition failed: %w", err)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ResolveResult{
		Name:      rec.Name,
		Raw:       rec.Raw,
		Corrected: rec.Corrected,
		Source:    source,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
	}); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
