// Package httpmiddleware contains the net/http middleware chain of the API
// server.
package httpmiddleware

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/ogen-go/ogen/otelogen"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Middleware is a net/http middleware.
type Middleware = func(http.Handler) http.Handler

// Wrap handler using given middlewares. The first middleware is the
// outermost one.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	switch len(middlewares) {
	case 0:
		return h
	case 1:
		return middlewares[0](h)
	default:
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}

// Telemetry provides the OpenTelemetry providers used by Instrument.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
	TextMapPropagator() propagation.TextMapPropagator
}

// Route is a matched API route.
type Route struct {
	// OperationID names the operation, e.g. "placeOrder".
	OperationID string
	// Pattern is the chi route pattern, e.g. "/api/events/{eventID}/orders".
	Pattern string
}

// RouteFinder finds a Route by given method and URL.
type RouteFinder func(method string, u *url.URL) (Route, bool)

// MakeRouteFinder creates a RouteFinder over a chi router. operations maps
// "METHOD pattern" to an operation id; matched routes without an entry use
// the pattern as their id.
func MakeRouteFinder(routes chi.Routes, operations map[string]string) RouteFinder {
	return func(method string, u *url.URL) (Route, bool) {
		pattern := routes.Find(chi.NewRouteContext(), method, u.Path)
		if pattern == "" {
			return Route{}, false
		}
		op, ok := operations[method+" "+pattern]
		if !ok {
			op = pattern
		}
		return Route{OperationID: op, Pattern: pattern}, true
	}
}

// InjectLogger injects logger into request context.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqCtx := r.Context()
			req := r.WithContext(zctx.Base(reqCtx, lg))
			next.ServeHTTP(w, req)
		})
	}
}

// Instrument setups otelhttp.
func Instrument(serviceName string, find RouteFinder, m Telemetry) Middleware {
	return func(h http.Handler) http.Handler {
		return otelhttp.NewHandler(h, "",
			otelhttp.WithPropagators(m.TextMapPropagator()),
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithServerName(serviceName),
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				route, ok := find(r.Method, r.URL)
				if !ok {
					return operation
				}
				return serviceName + "." + route.OperationID
			}),
		)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// LogRequests logs incoming requests using context logger.
func LogRequests(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			fields := []zap.Field{
				zap.String("http.request.method", r.Method),
				zap.Stringer("url", r.URL),
			}
			if route, ok := find(r.Method, r.URL); ok {
				fields = append(fields,
					zap.String("operation", route.OperationID),
					zap.String("http.route", route.Pattern),
				)
			}
			if id := RequestIDFromContext(ctx); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			lg := zctx.From(ctx).With(fields...)

			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(sw, r.WithContext(zctx.Base(ctx, lg)))

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}
			lg.Info("Request",
				zap.Int("http.response.status_code", status),
				zap.Int("http.response.body.size", sw.bytes),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// Labeler adds the operation id and route to otelhttp metric labels.
func Labeler(find RouteFinder) Middleware {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := find(r.Method, r.URL)
			if !ok {
				h.ServeHTTP(w, r)
				return
			}

			attrs := []attribute.KeyValue{
				otelogen.OperationID(route.OperationID),
				attribute.String("http.route", route.Pattern),
			}
			labeler, ok := otelhttp.LabelerFromContext(r.Context())
			if ok {
				labeler.Add(attrs...)
				h.ServeHTTP(w, r)
				return
			}
			labeler = &otelhttp.Labeler{}
			labeler.Add(attrs...)
			h.ServeHTTP(w, r.WithContext(otelhttp.ContextWithLabeler(r.Context(), labeler)))
		})
	}
}
