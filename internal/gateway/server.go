package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"

	"github.com/aosman25/islam-ai/internal/rewrite"
	"github.com/aosman25/islam-ai/internal/search"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// DefaultTopK is used when the request does not set top_k.
const DefaultTopK = 10

// defaultRRFK is the RRF smoothing constant used when no reranker is named.
const defaultRRFK = 60

// QueryRequest is the wire form of POST /query.
type QueryRequest struct {
	Query          string    `json:"query"`
	TopK           int       `json:"top_k,omitempty"`
	Temperature    *float64  `json:"temperature,omitempty"`
	MaxTokens      *int64    `json:"max_tokens,omitempty"`
	Stream         bool      `json:"stream,omitempty"`
	Reranker       string    `json:"reranker,omitempty"`
	RerankerParams []float64 `json:"reranker_params,omitempty"`
}

// QueryResponse is the non-streaming answer.
type QueryResponse struct {
	Response       string   `json:"response"`
	Sources        []Source `json:"sources"`
	OptimizedQuery string   `json:"optimized_query"`
	SubQueries     []string `json:"subqueries"`
	RequestID      string   `json:"request_id"`
}

// streamEvent is one NDJSON line of a streamed answer.
type streamEvent struct {
	Type           string   `json:"type"`
	Sources        []Source `json:"sources,omitempty"`
	OptimizedQuery string   `json:"optimized_query,omitempty"`
	SubQueries     []string `json:"subqueries,omitempty"`
	RequestID      string   `json:"request_id,omitempty"`
	Delta          string   `json:"delta,omitempty"`
}

// errorResponse is the standard error body.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// Server is the gateway HTTP server.
type Server struct {
	httpServer *http.Server
	service    *Service
	askTimeout time.Duration
	logger     *slog.Logger
}

// ServerConfig holds gateway server configuration.
type ServerConfig struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8081)
	Port string
	// AskTimeout bounds one full query round trip
	AskTimeout time.Duration
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// NewServer creates the gateway HTTP server around a wired service.
func NewServer(svc *Service, cfg ServerConfig) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8081"
	}
	if cfg.AskTimeout <= 0 {
		cfg.AskTimeout = DefaultAnswerTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		service:    svc,
		askTimeout: cfg.AskTimeout,
		logger:     cfg.Logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withRequestID(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.AskTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
}

// Start runs the server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting gateway", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleQuery runs the full RAG round trip. Validation happens before any
// upstream call so malformed requests fail fast.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if len([]rune(req.Query)) > rewrite.MaxQueryLen {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("query exceeds %d characters", rewrite.MaxQueryLen))
		return
	}
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}

	reranker, params, err := resolveReranker(req.Reranker, req.RerankerParams)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.askTimeout)
	defer cancel()

	ret, err := s.service.retrieve(ctx, req.Query, req.TopK, reranker, params)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}

	prompt := buildPrompt(ret.rewritten.OptimizedQuery, ret.sources, req.Temperature, req.MaxTokens)
	requestID := w.Header().Get(RequestIDHeader)

	if req.Stream {
		s.streamAnswer(ctx, w, prompt, ret, requestID)
		return
	}

	answer, err := s.service.answerer.Answer(ctx, prompt)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		Response:       answer,
		Sources:        ret.sources,
		OptimizedQuery: ret.rewritten.OptimizedQuery,
		SubQueries:     ret.rewritten.SubQueries,
		RequestID:      requestID,
	})
}

// streamAnswer writes the NDJSON frames: metadata, then one content frame per
// delta, then done. Errors after the first frame can only be logged.
func (s *Server) streamAnswer(ctx context.Context, w http.ResponseWriter, prompt Prompt, ret *retrieval, requestID string) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	emit := func(ev streamEvent) error {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	if err := emit(streamEvent{
		Type:           "metadata",
		Sources:        ret.sources,
		OptimizedQuery: ret.rewritten.OptimizedQuery,
		SubQueries:     ret.rewritten.SubQueries,
		RequestID:      requestID,
	}); err != nil {
		return
	}

	err := s.service.answerer.AnswerStream(ctx, prompt, func(delta string) error {
		return emit(streamEvent{Type: "content", Delta: delta})
	})
	if err != nil {
		s.logger.Error("answer stream failed", "error", err, "request_id", requestID)
		return
	}

	emit(streamEvent{Type: "done"})
}

// resolveReranker translates the wire reranker name and positional parameter
// array into the search package's form.
func resolveReranker(name string, params []float64) (search.Reranker, search.Params, error) {
	switch name {
	case "":
		k := defaultRRFK
		return search.RerankerRRF, search.Params{KRRF: &k}, nil
	case "RRF":
		if len(params) != 1 {
			return "", search.Params{}, fmt.Errorf("RRF reranker takes exactly one parameter, got %d", len(params))
		}
		k := int(params[0])
		return search.RerankerRRF, search.Params{KRRF: &k}, nil
	case "Weighted":
		if len(params) != 2 {
			return "", search.Params{}, fmt.Errorf("Weighted reranker takes exactly two parameters, got %d", len(params))
		}
		return search.RerankerWeighted, search.Params{WDense: &params[0], WSparse: &params[1]}, nil
	default:
		return "", search.Params{}, fmt.Errorf("unknown reranker %q", name)
	}
}

// writeUpstreamError maps failures to the right status: validation errors to
// 400, deadline hits to 504, model API errors to their own status, anything
// else to 503.
func (s *Server) writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, search.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "upstream request timed out")
	default:
		var apierr *openai.Error
		if errors.As(err, &apierr) && apierr.StatusCode >= 400 {
			writeError(w, apierr.StatusCode, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

// withRequestID stamps a correlation id on the response before the handler
// runs.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: w.Header().Get(RequestIDHeader),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
