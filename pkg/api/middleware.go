package api

import (
	"net/http"
	"runtime/debug"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("zeta/api")

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		rw := newStatusRecorder(w)

		next.ServeHTTP(rw, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"bytes", rw.bytes,
			"duration_ms", time.Since(startedAt).Milliseconds(),
			"remote", r.RemoteAddr,
			"request_id", chimw.GetReqID(r.Context()),
		}
		switch {
		case rw.status >= http.StatusInternalServerError:
			s.log.ErrorContext(r.Context(), "HTTP request", attrs...)
		case rw.status >= http.StatusBadRequest:
			s.log.WarnContext(r.Context(), "HTTP request", attrs...)
		default:
			s.log.InfoContext(r.Context(), "HTTP request", attrs...)
		}
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}
				s.log.ErrorContext(r.Context(), "Handler panicked", "path", r.URL.Path, "panic", recovered, "stack", string(debug.Stack()))
				writeJSON(w, http.StatusInternalServerError, errorBody{
					Error:   "INTERNAL_SERVER_ERROR",
					Message: "❌ Bir hata oluştu. Lütfen tekrar deneyin.",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		rw := newStatusRecorder(w)
		next.ServeHTTP(rw, r.WithContext(ctx))
		span.SetAttributes(
			attribute.Int("http.response.status_code", rw.status),
			attribute.Int("http.response_content_length", rw.bytes),
		)
	})
}

func (s *Server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{
				Error:   "STORAGE_DISABLED",
				Message: "Konuşma kaydı devre dışı",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
