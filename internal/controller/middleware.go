package controller

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/sharetube/party/internal/metrics"
	"github.com/sharetube/party/pkg/ctxlogger"
	"github.com/sharetube/party/pkg/rest"
)

func (c controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := ctxlogger.AppendCtx(r.Context(), slog.String("request_id", requestID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		c.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"url", r.URL.String(),
			"remote_addr", r.RemoteAddr,
			"status", ww.Status(),
			"processing_time_us", time.Since(start).Microseconds(),
		)
	})
}

func (c controller) metricsMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

func (c controller) identityMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := c.identity.Resolve(r)
		if err != nil {
			c.logger.DebugContext(r.Context(), "failed to resolve identity", "error", err)
			rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": errorBody{
				Code:    codeUnauthenticated,
				Message: "authentication required",
			}})
			return
		}

		ctx := context.WithValue(r.Context(), identityCtxKey, identity)
		ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", identity.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// partyCodeMw upper-cases the code so typed codes match generated ones.
func (c controller) partyCodeMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))

		ctx := context.WithValue(r.Context(), partyCodeCtxKey, code)
		ctx = ctxlogger.AppendCtx(ctx, slog.String("party_code", code))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c controller) rateLimitKey(r *http.Request) (string, error) {
	if identity := c.getIdentityFromCtx(r.Context()); identity.UserID != "" {
		return "user:" + identity.UserID, nil
	}

	return httprate.KeyByIP(r)
}

func (c controller) rateLimited(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusTooManyRequests, rest.Envelope{"error": errorBody{
		Code:    codeRateLimited,
		Message: "too many requests",
	}})
}
