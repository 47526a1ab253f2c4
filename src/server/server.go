// Package server is the HTTP surface of the agent.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"viber-agent/src/agent"
	agenterrors "viber-agent/src/errors"
	"viber-agent/src/logutil"
	"viber-agent/src/worker"
)

const (
	apiKeyHeader    = "X-API-Key"
	requestIDHeader = "X-Request-ID"
)

// Service is what the handlers drive. *agent.Agent implements it.
type Service interface {
	Lookup(ctx context.Context, req agent.LookupRequest) (agent.LookupResult, error)
	Send(ctx context.Context, number, message string) error
	Health(ctx context.Context) agent.Health
}

type Options struct {
	Service Service
	// APIKey, when set, is required in the X-API-Key header of every
	// request except /health and preflights.
	APIKey string
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type Server struct {
	svc    Service
	apiKey string
}

type checkRequest struct {
	Number       string `json:"number"`
	OnlyPanel    bool   `json:"only_panel"`
	IncludePhoto bool   `json:"include_photo"`
}

type checkResponse struct {
	Number             string `json:"number"`
	ScreenshotBase64   string `json:"screenshot_base64,omitempty"`
	ContactPanelBase64 string `json:"contact_panel_base64,omitempty"`
	PanelBase64        string `json:"panel_base64,omitempty"`
	PanelText          string `json:"panel_text"`
	ContactName        string `json:"contact_name,omitempty"`
}

type sendRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

type sendResponse struct {
	OK     bool   `json:"ok"`
	Number string `json:"number"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}

// New returns the router with every endpoint mounted.
func New(opts Options) http.Handler {
	s := &Server{svc: opts.Service, apiKey: opts.APIKey}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", s.handleHealth)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/check-number", s.handleCheckNumber)
		r.Post("/check-number-base64", s.handleCheckNumberBase64)
		r.Post("/send-message", s.handleSendMessage)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Health(r.Context()))
}

// handleCheckNumber handles POST /check-number and replies with PNG data:
// the panel alone, both images as multipart/mixed, or the full window.
func (s *Server) handleCheckNumber(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decode(w, r, &req) {
		return
	}
	req.Number = strings.TrimSpace(req.Number)
	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "Missing 'number' in JSON body", "")
		return
	}

	log.Printf("[%s] POST /check-number only_panel=%v include_photo=%v", requestIDFrom(r), req.OnlyPanel, req.IncludePhoto)
	res, err := s.svc.Lookup(r.Context(), agent.LookupRequest{Number: req.Number, OnlyPanel: req.OnlyPanel})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	switch {
	case req.OnlyPanel && res.PanelImage != nil:
		writePNG(w, "contact_panel.png", res.PanelImage)
	case req.IncludePhoto && res.PanelImage != nil:
		if err := writeMultipart(w, res.WindowImage, res.PanelImage); err != nil {
			log.Printf("[%s] multipart write failed: %v", requestIDFrom(r), err)
		}
	default:
		writePNG(w, "viber_screenshot.png", res.WindowImage)
	}
}

// handleCheckNumberBase64 handles POST /check-number-base64: the same
// capture as /check-number plus name recognition, as JSON.
func (s *Server) handleCheckNumberBase64(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req checkRequest
	if !decode(w, r, &req) {
		return
	}
	req.Number = strings.TrimSpace(req.Number)
	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "Missing 'number' in JSON body", "")
		return
	}

	log.Printf("[%s] POST /check-number-base64 received", requestIDFrom(r))
	res, err := s.svc.Lookup(r.Context(), agent.LookupRequest{Number: req.Number, OnlyPanel: req.OnlyPanel, Recognize: true})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := checkResponse{Number: req.Number, PanelText: res.PanelText, ContactName: res.ContactName}
	if req.OnlyPanel && res.PanelImage != nil {
		out.PanelBase64 = base64.StdEncoding.EncodeToString(res.PanelImage)
	} else {
		out.ScreenshotBase64 = base64.StdEncoding.EncodeToString(res.WindowImage)
		if res.PanelImage != nil {
			out.ContactPanelBase64 = base64.StdEncoding.EncodeToString(res.PanelImage)
		}
	}
	logutil.Step("REQUEST TOTAL", time.Since(start), "")
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decode(w, r, &req) {
		return
	}
	req.Number = strings.TrimSpace(req.Number)
	req.Message = strings.TrimSpace(req.Message)
	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "Missing 'number' in JSON body", "")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Missing 'message' in JSON body", "")
		return
	}

	log.Printf("[%s] POST /send-message (%d chars)", requestIDFrom(r), len([]rune(req.Message)))
	if err := s.svc.Send(r.Context(), req.Number, req.Message); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{OK: true, Number: req.Number})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	log.Printf("[%s] request failed (%d): %v", requestIDFrom(r), status, err)
	var ae *agenterrors.AgentError
	if errors.As(err, &ae) {
		writeJSON(w, status, ae.ToMap())
		return
	}
	writeError(w, status, agenterrors.Message(err), string(agenterrors.CodeOf(err)))
}

// StatusOf maps an operation error to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, worker.ErrBusy), errors.Is(err, worker.ErrClosed):
		return http.StatusServiceUnavailable
	case agenterrors.HasCode(err, agenterrors.ErrorInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decode reads an optional JSON body. An empty body decodes to the zero
// value so that the missing-field messages apply.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err), string(agenterrors.ErrorInvalidRequest))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, ErrorCode: code})
}

func writePNG(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeMultipart(w http.ResponseWriter, window, panel []byte) error {
	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	w.WriteHeader(http.StatusOK)
	for _, part := range []struct {
		name string
		data []byte
	}{{"viber_window.png", window}, {"contact_panel.png", panel}} {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", part.name))
		h.Set("Content-Type", "image/png")
		pw, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := pw.Write(part.data); err != nil {
			return err
		}
	}
	return mw.Close()
}
