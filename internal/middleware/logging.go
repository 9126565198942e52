package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"printsync/internal/metrics"
	"printsync/internal/printify"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestIDHeader echoes the request id back to the caller
const RequestIDHeader = "X-Request-Id"

type annotationsKey struct{}

// annotations collects fields that handlers further down the chain want on the
// completed-request log line (webhook event, dispatched product, admin user).
type annotations struct {
	mu     sync.Mutex
	fields []zap.Field
}

// AnnotateRequest adds fields to the request's completion log entry.
// It is a no-op outside LoggingMiddleware.
func AnnotateRequest(ctx context.Context, fields ...zap.Field) {
	a, ok := ctx.Value(annotationsKey{}).(*annotations)
	if !ok {
		return
	}
	a.mu.Lock()
	a.fields = append(a.fields, fields...)
	a.mu.Unlock()
}

// DefaultMiddlewareStack returns the middleware every route shares
func DefaultMiddlewareStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		exposeRequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Compress(5),
	}
}

// exposeRequestID copies chi's request id into the response headers, where the
// error envelope and webhook senders can pick it up
func exposeRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs each request once it completes and records request metrics
// by route pattern. Webhook deliveries also log whether they carried a signature.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := middleware.GetReqID(r.Context())

			notes := &annotations{}
			r = r.WithContext(context.WithValue(r.Context(), annotationsKey{}, notes))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			endpoint := routePattern(r)
			metrics.RecordRequest(r.Method, endpoint, ww.Status(), duration)

			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("endpoint", endpoint),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", duration),
			}
			if strings.HasPrefix(r.URL.Path, "/webhooks/") {
				fields = append(fields, zap.Bool("signed", r.Header.Get(printify.SignatureHeader) != ""))
			}
			notes.mu.Lock()
			fields = append(fields, notes.fields...)
			notes.mu.Unlock()

			switch {
			case ww.Status() >= http.StatusInternalServerError:
				logger.Error("Request failed", fields...)
			case ww.Status() >= http.StatusBadRequest:
				logger.Warn("Request rejected", fields...)
			default:
				logger.Info("Request completed", fields...)
			}
		})
	}
}

// routePattern keeps metric labels bounded: /api/products/{externalID}, never the raw id
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
