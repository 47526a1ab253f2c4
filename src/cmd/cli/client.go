package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
)

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newClient(baseURL, apiKey string, timeout time.Duration) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type lookupResult struct {
	Number             string `json:"number"`
	ScreenshotBase64   string `json:"screenshot_base64,omitempty"`
	ContactPanelBase64 string `json:"contact_panel_base64,omitempty"`
	PanelBase64        string `json:"panel_base64,omitempty"`
	PanelText          string `json:"panel_text"`
	ContactName        string `json:"contact_name,omitempty"`
}

func (c *client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, responseError(resp)
	}
	return resp, nil
}

// responseError turns an error response into the agent's message.
func responseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body struct {
		Error     string `json:"error"`
		ErrorCode string `json:"error_code"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		if body.ErrorCode != "" {
			return fmt.Errorf("request failed (%d %s): %s", resp.StatusCode, body.ErrorCode, body.Error)
		}
		return fmt.Errorf("request failed (%d): %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
}

func (c *client) sendMessage(ctx context.Context, number, message string) error {
	resp, err := c.post(ctx, "/send-message", map[string]string{"number": number, "message": message})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// saveLookup writes the images returned by /check-number and reports each
// saved file on out.
func saveLookup(ctx context.Context, c *client, out io.Writer, number, output string, onlyPanel, includePhoto bool) error {
	resp, err := c.post(ctx, "/check-number", map[string]interface{}{
		"number":        number,
		"only_panel":    onlyPanel,
		"include_photo": includePhoto,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	mediaType, params, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if includePhoto && strings.HasPrefix(mediaType, "multipart/") {
		prefix := strings.TrimSuffix(output, ".png")
		names := map[string]string{
			"viber_window.png":  prefix + "_window.png",
			"contact_panel.png": prefix + "_panel.png",
		}
		mr := multipart.NewReader(resp.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read multipart response: %w", err)
			}
			fn, ok := names[part.FileName()]
			if !ok {
				fn = prefix + "_part.png"
			}
			if err := saveFile(fn, part); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved: %s\n", fn)
		}
	}

	if !strings.HasSuffix(strings.ToLower(output), ".png") {
		output += ".png"
	}
	if err := saveFile(output, resp.Body); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved: %s\n", output)
	return nil
}

func printLookup(ctx context.Context, c *client, out io.Writer, number string, onlyPanel bool) error {
	resp, err := c.post(ctx, "/check-number-base64", map[string]interface{}{"number": number, "only_panel": onlyPanel})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var res lookupResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	summary := struct {
		Number      string `json:"number"`
		ContactName string `json:"contact_name"`
		PanelText   string `json:"panel_text"`
		WindowBytes int    `json:"window_bytes,omitempty"`
		PanelBytes  int    `json:"panel_bytes,omitempty"`
	}{
		Number:      res.Number,
		ContactName: res.ContactName,
		PanelText:   res.PanelText,
		WindowBytes: decodedLen(res.ScreenshotBase64),
		PanelBytes:  decodedLen(res.ContactPanelBase64) + decodedLen(res.PanelBase64),
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}

func decodedLen(s string) int {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return 0
	}
	return len(data)
}

func saveFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
