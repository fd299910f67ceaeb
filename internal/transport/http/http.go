// Package http implements the HTTP transport for dialect-tts.
//
// It exposes POST /synthesize/{style} and the Swagger UI. Request bodies are
// decoded here; everything after that is the handler's job. Failures are
// always answered with a JSON {"detail": ...} body.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/dialect-tts/internal/config"
	"github.com/nadzzz/dialect-tts/internal/message"
	"github.com/nadzzz/dialect-tts/internal/slg"
	"github.com/nadzzz/dialect-tts/internal/transport"
)

const requestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds how much of an inbound X-Request-ID is trusted.
const maxRequestIDLen = 128

// Transport implements transport.Transport over HTTP.
type Transport struct {
	cfg config.HTTPConfig

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// New creates a new HTTP transport.
func New(cfg config.HTTPConfig) *Transport {
	return &Transport{cfg: cfg}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", t.cfg.Port),
		Handler:           t.Routes(handler),
		ReadHeaderTimeout: t.cfg.ReadHeaderTimeout,
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.server = srv
	t.mu.Unlock()

	slog.Info("http transport listening", "port", t.cfg.Port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		_ = t.Close()
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Routes builds the router. It is separate from Listen so tests can drive it
// through httptest.
func (t *Transport) Routes(handler transport.Handler) http.Handler {
	r := chi.NewRouter()

	if len(t.cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: t.cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, message.ErrorResponse{Detail: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, message.ErrorResponse{Detail: "Method Not Allowed"})
	})

	r.Post("/synthesize/{style}", func(w http.ResponseWriter, r *http.Request) {
		t.handleSynthesize(w, r, handler)
	})

	// Swagger UI; serves the docs registered by the docs package.
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}

// handleSynthesize processes a POST /synthesize/{style} request.
//
// @Summary     Synthesize speech in a dialect style
// @Description Clones the voice in prompt_audio and speaks text in the requested dialect style.
// @Description The model may split long text into several segments; each is returned as its own
// @Description base64-encoded 16-bit PCM WAV file, in order.
// @Tags        synthesis
// @Accept      json
// @Produce     json
// @Param       style    path      string                    true  "Style id (e.g. sichuanese)"
// @Param       request  body      message.SynthesisRequest  true  "Text, base64 WAV voice prompt and speed"
// @Param       X-Request-ID  header  string  false  "Request id echoed back and attached to logs"
// @Success     200  {object}  message.SynthesisResponse  "Synthesized segments"
// @Failure     400  {object}  message.ErrorResponse      "Missing field or malformed body"
// @Failure     404  {object}  message.ErrorResponse      "Unknown style"
// @Failure     500  {object}  message.ErrorResponse      "Decode, inference or encoding failure"
// @Router      /synthesize/{style} [post]
func (t *Transport) handleSynthesize(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	if t.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, t.cfg.MaxBodyBytes)
	}

	var req message.SynthesisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			t.writeError(w, r, message.Errorf(message.KindValidation, "request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		t.writeError(w, r, message.Errorf(message.KindValidation, "invalid json body: %w", err))
		return
	}
	req.Style = chi.URLParam(r, "style")

	resp, err := handler(r.Context(), &req)
	if err != nil {
		t.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeError answers with the status for err's kind and a {"detail"} body.
func (t *Transport) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := message.KindOf(err)
	status := t.statusFor(kind)
	if kind == message.KindValidation {
		slg.From(r.Context()).Warn("rejected request", "error", err, "status", status)
	}
	writeJSON(w, status, message.ErrorResponse{Detail: err.Error()})
}

func (t *Transport) statusFor(kind message.Kind) int {
	if t.cfg.UniformErrors {
		return http.StatusInternalServerError
	}
	switch kind {
	case message.KindValidation:
		return http.StatusBadRequest
	case message.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Close gracefully shuts down the HTTP server, waiting for in-flight
// syntheses up to the configured shutdown timeout. Close before Listen makes
// a later Listen return immediately.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	srv := t.server
	t.mu.Unlock()

	if srv == nil {
		return nil
	}
	timeout := t.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// requestLogger assigns a request id and stores a logger carrying it in the
// request context.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logger := slog.Default().With("request_id", id, "remote_addr", r.RemoteAddr)
		logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(slg.With(r.Context(), logger)))
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
